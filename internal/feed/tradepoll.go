package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"razor/internal/domain"
)

// dataAPITrade is the JSON shape returned by the Data API's /trades
// endpoint: one fill on the public tape.
type dataAPITrade struct {
	Market          string  `json:"market"`
	AssetID         string  `json:"asset_id"`
	Price           float64 `json:"price"`
	Size            float64 `json:"size"`
	Timestamp       int64   `json:"timestamp"` // unix seconds
	TransactionHash string  `json:"transactionHash"`
}

// TradePoller polls the Data API trades endpoint for every tracked market at
// a fixed interval and pushes converted TradeTicks onto the blocking trade
// queue feeding the trade store.
type TradePoller struct {
	http      *resty.Client
	interval  time.Duration
	limit     int
	marketIDs []string
	out       chan<- domain.TradeTick
	logger    *slog.Logger
}

// NewTradePoller creates a poller against baseURL (e.g.
// https://data-api.polymarket.com), polling every interval for up to limit
// trades per market per poll, pushing onto out.
func NewTradePoller(baseURL string, interval time.Duration, limit int, marketIDs []string, out chan<- domain.TradeTick, logger *slog.Logger) *TradePoller {
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
	return &TradePoller{
		http:      http,
		interval:  interval,
		limit:     limit,
		marketIDs: marketIDs,
		out:       out,
		logger:    logger.With("component", "trade_poller"),
	}
}

// Run polls immediately, then on every tick, until ctx is done.
func (p *TradePoller) Run(ctx context.Context) {
	p.pollAll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *TradePoller) pollAll(ctx context.Context) {
	for _, marketID := range p.marketIDs {
		p.pollMarket(ctx, marketID)
	}
}

func (p *TradePoller) pollMarket(ctx context.Context, marketID string) {
	trades, err := p.fetchTrades(ctx, marketID)
	if err != nil {
		p.logger.Warn("trade poll failed", "market_id", marketID, "error", err)
		return
	}
	now := time.Now().UnixMilli()
	for _, t := range trades {
		tick := domain.TradeTick{
			TsMs:       t.Timestamp * 1000,
			IngestTsMs: now,
			MarketID:   marketID,
			TokenID:    t.AssetID,
			Price:      t.Price,
			Size:       t.Size,
			TradeID:    tradeID(t),
		}
		select {
		case p.out <- tick:
			p.logger.Debug("trade tick pushed", "market_id", marketID, "token_id", t.AssetID)
		case <-ctx.Done():
			return
		}
	}
}

func (p *TradePoller) fetchTrades(ctx context.Context, marketID string) ([]dataAPITrade, error) {
	var trades []dataAPITrade
	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"market": marketID,
			"limit":  strconv.Itoa(p.limit),
		}).
		SetResult(&trades).
		Get("/trades")
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("fetch trades: status %d: %s", resp.StatusCode(), resp.String())
	}
	return trades, nil
}

// tradeID builds a stable identifier from the transaction hash, falling
// back to a weak composite key for entries without one.
func tradeID(t dataAPITrade) string {
	if t.TransactionHash != "" {
		return t.TransactionHash + ":" + t.AssetID
	}
	return fmt.Sprintf("weak:%s:%s:%d:%d:%d", t.Market, t.AssetID, t.Timestamp, math.Float64bits(t.Price), math.Float64bits(t.Size))
}
