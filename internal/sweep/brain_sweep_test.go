package sweep

import (
	"testing"

	"razor/internal/domain"
	"razor/internal/ledger"
	"razor/internal/tradestore"
)

func TestRunBrainSweepGridSize(t *testing.T) {
	snapshots := []domain.MarketSnapshot{
		{MarketID: "m1", TsMs: 0, Legs: []domain.LegSnapshot{
			{TokenID: "tokA", BestBid: 0.47, BestAsk: 0.48, AskDepth3USDC: 1000},
			{TokenID: "tokB", BestBid: 0.48, BestAsk: 0.49, AskDepth3USDC: 1000},
		}},
	}
	trades := tradestore.New(60_000, 10_000)
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokA", Price: 0.48, Size: 50, TradeID: "t1"})
	trades.Push(domain.TradeTick{TsMs: 500, MarketID: "m1", TokenID: "tokB", Price: 0.49, Size: 50, TradeID: "t2"})

	scores := RunBrainSweep("base1", snapshots, 10, ledger.FillShares{Liquid: 0.3, Thin: 0.1}, 0.05, trades, 100, 1100)
	if len(scores) != 4*3*3 {
		t.Fatalf("grid size = %d, want 36", len(scores))
	}
}

func TestSelectBestBrainTieBreakPrefersHigherThresholds(t *testing.T) {
	scores := []BrainScore{
		{BaseRunID: "b1", SignalsOK: 1, TotalPnlSum: 5, LeggingRate: 0, MinNetEdgeBps: 40, RiskPremiumBps: 60, SignalCooldownMs: 500},
		{BaseRunID: "b1", SignalsOK: 1, TotalPnlSum: 5, LeggingRate: 0, MinNetEdgeBps: 10, RiskPremiumBps: 60, SignalCooldownMs: 500},
	}
	best, ok := SelectBestBrain(scores)
	if !ok || best.MinNetEdgeBps != 40 {
		t.Fatalf("expected tiebreak to favor the more conservative (higher) min_net_edge_bps=40, got %+v ok=%v", best, ok)
	}
}
