package signalengine

import (
	"testing"

	"razor/internal/bps"
	"razor/internal/domain"
	"razor/internal/health"
)

func snapshot(marketID string, bidAsk [][2]float64, depth float64) domain.MarketSnapshot {
	legs := make([]domain.LegSnapshot, len(bidAsk))
	for i, ba := range bidAsk {
		legs[i] = domain.LegSnapshot{TokenID: "tok" + string(rune('0'+i)), BestBid: ba[0], BestAsk: ba[1], AskDepth3USDC: depth}
	}
	return domain.MarketSnapshot{MarketID: marketID, Legs: legs}
}

func TestBinaryAdmittedScenario(t *testing.T) {
	// asks=[0.48,0.49], risk_premium=80, min_net=10 -> net edge exactly 10.
	params := Params{RiskPremiumBps: 80, MinNetEdgeBps: 10, QReq: 10, SignalCooldownMs: 1000}
	e := New("run1", params, nil, &health.Counters{})

	snap := snapshot("m1", [][2]float64{{0.4795, 0.48}, {0.4895, 0.49}}, 1000)
	e.onSnapshot(snap, 1000)

	select {
	case sig := <-e.Out():
		if sig.RawCostBps != 9700 {
			t.Errorf("RawCostBps = %v, want 9700", sig.RawCostBps)
		}
		if sig.ExpectedNetBps != 10 {
			t.Errorf("ExpectedNetBps = %v, want 10", sig.ExpectedNetBps)
		}
		if sig.Bucket != "liquid" {
			t.Errorf("Bucket = %v, want liquid", sig.Bucket)
		}
	default:
		t.Fatal("expected an admitted signal")
	}
}

func TestGatingSkipsBelowMinEdge(t *testing.T) {
	// Same snapshot as the admitted case, but min_net=11 must skip.
	params := Params{RiskPremiumBps: 80, MinNetEdgeBps: 11, QReq: 10, SignalCooldownMs: 1000}
	e := New("run1", params, nil, &health.Counters{})
	snap := snapshot("m1", [][2]float64{{0.4795, 0.48}, {0.4895, 0.49}}, 1000)
	e.onSnapshot(snap, 1000)

	select {
	case sig := <-e.Out():
		t.Fatalf("expected no signal, got %+v", sig)
	default:
	}
}

func TestCooldownSuppressesDuplicate(t *testing.T) {
	// Two identical snapshots 500ms apart, cooldown=1000ms.
	params := Params{RiskPremiumBps: 80, MinNetEdgeBps: 10, QReq: 10, SignalCooldownMs: 1000}
	e := New("run1", params, nil, &health.Counters{})
	snap := snapshot("m1", [][2]float64{{0.47, 0.48}, {0.48, 0.49}}, 1000)

	e.onSnapshot(snap, 1000)
	e.onSnapshot(snap, 1500)

	count := 0
	for {
		select {
		case <-e.Out():
			count++
		default:
			if count != 1 {
				t.Errorf("admitted count = %d, want 1", count)
			}
			return
		}
	}
}

func TestExpectedNetBpsInvariant(t *testing.T) {
	params := Params{RiskPremiumBps: 80, MinNetEdgeBps: 10, QReq: 10, SignalCooldownMs: 1000}
	e := New("run1", params, nil, &health.Counters{})
	snap := snapshot("m1", [][2]float64{{0.47, 0.48}, {0.48, 0.49}}, 1000)
	e.onSnapshot(snap, 1000)

	sig := <-e.Out()
	want := bps.Bps(10000) - sig.RawCostBps - bps.FeePoly - bps.FeeMerge - sig.RiskPremiumBps
	if sig.ExpectedNetBps != want {
		t.Errorf("invariant violated: ExpectedNetBps=%v want=%v", sig.ExpectedNetBps, want)
	}
}
