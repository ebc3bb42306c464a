package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchMarketBinary(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]gammaMarket{{
			ID:                    "1",
			ConditionID:           "mkt1",
			ClobTokenIds:          `["tokYes","tokNo"]`,
			OrderPriceMinTickSize: 0.01,
			Active:                true,
		}})
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	meta, err := c.FetchMarket(context.Background(), "mkt1")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if meta.MarketID != "mkt1" {
		t.Errorf("MarketID = %q, want mkt1", meta.MarketID)
	}
	if len(meta.TokenIDs) != 2 || meta.TokenIDs[0] != "tokYes" || meta.TokenIDs[1] != "tokNo" {
		t.Errorf("TokenIDs = %v, want [tokYes tokNo]", meta.TokenIDs)
	}
	if meta.TickSize != 0.01 {
		t.Errorf("TickSize = %v, want 0.01", meta.TickSize)
	}
}

func TestFetchMarketTriangle(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]gammaMarket{{
			ConditionID:  "mkt2",
			ClobTokenIds: `["a","b","c"]`,
		}})
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	meta, err := c.FetchMarket(context.Background(), "mkt2")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if len(meta.TokenIDs) != 3 {
		t.Fatalf("TokenIDs len = %d, want 3", len(meta.TokenIDs))
	}
	if meta.TickSize != 0.001 {
		t.Errorf("TickSize = %v, want default 0.001", meta.TickSize)
	}
}

func TestFetchMarketBadLegCount(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]gammaMarket{{ConditionID: "mkt3", ClobTokenIds: `["only-one"]`}})
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	if _, err := c.FetchMarket(context.Background(), "mkt3"); err == nil {
		t.Fatal("expected error for 1-leg market, got nil")
	}
}

func TestFetchMarketNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]gammaMarket{})
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	if _, err := c.FetchMarket(context.Background(), "ghost"); err == nil {
		t.Fatal("expected not-found error, got nil")
	}
}

func TestFetchMarketsStopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		cond := r.URL.Query().Get("condition_ids")
		w.Header().Set("Content-Type", "application/json")
		if cond == "bad" {
			json.NewEncoder(w).Encode([]gammaMarket{})
			return
		}
		json.NewEncoder(w).Encode([]gammaMarket{{ConditionID: cond, ClobTokenIds: `["x","y"]`}})
	}))
	defer srv.Close()

	c := NewGammaClient(srv.URL, testLogger())
	_, err := c.FetchMarkets(context.Background(), []string{"good1", "bad", "good2"})
	if err == nil {
		t.Fatal("expected error from bad market id")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (stop at first failure)", calls)
	}
}
