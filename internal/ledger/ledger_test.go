package ledger

import (
	"strings"
	"testing"

	"razor/internal/domain"
	"razor/internal/health"
	"razor/internal/tradestore"
)

func TestSettlePartialFillScenario(t *testing.T) {
	// q_req=10, fill_share=0.30; in-window trades leg0 50 units <=0.48,
	// leg1 20 units <=0.49 -> q_fill=[10,6], q_set=6, set_ratio=0.75.
	trades := tradestore.New(60_000, 10_000)
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokA", Price: 0.48, Size: 50, TradeID: "t1"})
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokB", Price: 0.49, Size: 20, TradeID: "t2"})

	l := New("run1", 100, 1100, FillShares{Liquid: 0.30, Thin: 0.10}, 0.05, trades, &health.Counters{}, "")

	sig := domain.Signal{
		RunID: "run1", SignalID: 1, SignalTsMs: 0, MarketID: "m1", Strategy: domain.Binary, Bucket: "liquid", QReq: 10,
		Legs: []domain.Leg{
			{LegIndex: 0, TokenID: "tokA", LimitPrice: 0.48, Qty: 10, BestBidAtSignal: 0.47, BestAskAtSignal: 0.48},
			{LegIndex: 1, TokenID: "tokB", LimitPrice: 0.49, Qty: 10, BestBidAtSignal: 0.48, BestAskAtSignal: 0.49},
		},
	}

	sig.WorstLegIndex = 1

	row := l.Settle(sig)
	if row.QSet != 6 {
		t.Errorf("QSet = %v, want 6", row.QSet)
	}
	if row.WorstLegTokenID != "tokB" {
		t.Errorf("WorstLegTokenID = %q, want tokB", row.WorstLegTokenID)
	}
	if !strings.Contains(row.Notes, "LEGS_PADDED") {
		t.Errorf("Notes = %q, want LEGS_PADDED for a 2-leg settlement", row.Notes)
	}
	if !approxEqual(row.SetRatio, 0.75, 1e-9) {
		t.Errorf("SetRatio = %v, want 0.75", row.SetRatio)
	}
	if row.PnlLeftTotal >= 0 {
		t.Errorf("PnlLeftTotal = %v, want negative (dump slippage on leftover)", row.PnlLeftTotal)
	}
	if row.Notes == "" {
		t.Error("Notes must never be empty")
	}
}

func TestSettleNoTradesReasonCode(t *testing.T) {
	trades := tradestore.New(60_000, 10_000)
	l := New("run1", 100, 1100, FillShares{Liquid: 0.30, Thin: 0.10}, 0.05, trades, &health.Counters{}, "")
	sig := domain.Signal{
		RunID: "run1", SignalID: 1, SignalTsMs: 0, MarketID: "m1", Strategy: domain.Binary, Bucket: "liquid", QReq: 10,
		Legs: []domain.Leg{
			{LegIndex: 0, TokenID: "tokA", LimitPrice: 0.48, Qty: 10, BestBidAtSignal: 0.47},
			{LegIndex: 1, TokenID: "tokB", LimitPrice: 0.49, Qty: 10, BestBidAtSignal: 0.48},
		},
	}
	row := l.Settle(sig)
	if !strings.Contains(row.Notes, "NO_TRADES") {
		t.Errorf("Notes = %q, want NO_TRADES", row.Notes)
	}
	if !strings.Contains(row.Notes, "WINDOW_EMPTY") {
		t.Errorf("Notes = %q, want WINDOW_EMPTY for an empty tape", row.Notes)
	}
}

func TestSettleDedupHitReasonCode(t *testing.T) {
	trades := tradestore.New(60_000, 10_000)
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokA", Price: 0.48, Size: 50, TradeID: "dup"})
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokA", Price: 0.48, Size: 50, TradeID: "dup"})
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokB", Price: 0.49, Size: 50, TradeID: "t2"})

	l := New("run1", 100, 1100, FillShares{Liquid: 0.30, Thin: 0.10}, 0.05, trades, &health.Counters{}, "")
	sig := domain.Signal{
		RunID: "run1", SignalID: 1, SignalTsMs: 0, MarketID: "m1", Strategy: domain.Binary, Bucket: "liquid", QReq: 10,
		Legs: []domain.Leg{
			{LegIndex: 0, TokenID: "tokA", LimitPrice: 0.48, Qty: 10, BestBidAtSignal: 0.47, BestAskAtSignal: 0.48},
			{LegIndex: 1, TokenID: "tokB", LimitPrice: 0.49, Qty: 10, BestBidAtSignal: 0.48, BestAskAtSignal: 0.49},
		},
	}
	row := l.Settle(sig)
	if !strings.Contains(row.Notes, "DEDUP_HIT") {
		t.Errorf("Notes = %q, want DEDUP_HIT", row.Notes)
	}
	if !strings.Contains(row.Notes, "DEDUP_N=1") {
		t.Errorf("Notes = %q, want DEDUP_N=1 diagnostic token", row.Notes)
	}
}
