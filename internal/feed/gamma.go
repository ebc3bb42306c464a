// Package feed implements the dry-run harness's external market-data
// collaborators: a Gamma REST client for market metadata, a CLOB WebSocket
// feed maintaining a local per-leg book mirror, and a trade-tape poller.
// None of them sign anything or place orders; every endpoint they touch is
// public, read-only market data.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// MarketMeta is the declared shape of one market: its ordered outcome token
// list (2 legs for a binary market, 3 for a triangle) and tick size. Token
// order is stable and becomes each signal leg's leg_index.
type MarketMeta struct {
	MarketID string
	TokenIDs []string
	TickSize float64
}

// gammaMarket is the JSON shape returned by the Gamma API's /markets
// endpoint. ClobTokenIds arrives as a JSON-encoded string holding a string
// array.
type gammaMarket struct {
	ID                    string  `json:"id"`
	ConditionID           string  `json:"conditionId"`
	ClobTokenIds          string  `json:"clobTokenIds"`
	OrderPriceMinTickSize float64 `json:"orderPriceMinTickSize"`
	Active                bool    `json:"active"`
	Closed                bool    `json:"closed"`
}

// GammaClient polls the Gamma API for market metadata. It wraps a resty
// client with retries (up to 3 retries after the first attempt, 500ms-5s
// backoff on 5xx or transport errors); reads only, no auth headers.
type GammaClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewGammaClient creates a Gamma client pointed at baseURL
// (e.g. https://gamma-api.polymarket.com).
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &GammaClient{http: http, logger: logger.With("component", "gamma_client")}
}

// FetchMarket fetches one market's metadata by condition id and parses its
// declared token list. Returns an error if the market has a leg count
// outside {2,3} or is not found, so callers never construct a snapshot for
// an unsupported market shape.
func (c *GammaClient) FetchMarket(ctx context.Context, marketID string) (MarketMeta, error) {
	var markets []gammaMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("condition_ids", marketID).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return MarketMeta{}, fmt.Errorf("fetch market %s: %w", marketID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return MarketMeta{}, fmt.Errorf("fetch market %s: status %d: %s", marketID, resp.StatusCode(), resp.String())
	}
	if len(markets) == 0 {
		return MarketMeta{}, fmt.Errorf("fetch market %s: not found", marketID)
	}
	return parseGammaMarket(markets[0])
}

func parseGammaMarket(m gammaMarket) (MarketMeta, error) {
	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIds), &tokenIDs); err != nil {
		return MarketMeta{}, fmt.Errorf("parse clobTokenIds for %s: %w", m.ConditionID, err)
	}
	if n := len(tokenIDs); n != 2 && n != 3 {
		return MarketMeta{}, fmt.Errorf("market %s declares %d legs, want 2 or 3", m.ConditionID, n)
	}
	tickSize := m.OrderPriceMinTickSize
	if tickSize <= 0 {
		tickSize = 0.001
	}
	return MarketMeta{MarketID: m.ConditionID, TokenIDs: tokenIDs, TickSize: tickSize}, nil
}

// FetchMarkets resolves metadata for every market id, stopping at the first
// failure: a market that can't be resolved to a valid leg count must never
// silently drop out of the watch list.
func (c *GammaClient) FetchMarkets(ctx context.Context, marketIDs []string) ([]MarketMeta, error) {
	metas := make([]MarketMeta, 0, len(marketIDs))
	for _, id := range marketIDs {
		meta, err := c.FetchMarket(ctx, id)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
