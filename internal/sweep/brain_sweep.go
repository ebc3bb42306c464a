package sweep

import (
	"sort"

	"razor/internal/bps"
	"razor/internal/domain"
	"razor/internal/health"
	"razor/internal/ledger"
	"razor/internal/schema"
	"razor/internal/signalengine"
	"razor/internal/tradestore"
)

// BrainGrid is the fixed parameter space explored by the Brain Sweep.
var BrainGrid = struct {
	MinNetEdgeBps    []int
	RiskPremiumBps   []int
	SignalCooldownMs []int64
}{
	MinNetEdgeBps:    []int{10, 20, 30, 40},
	RiskPremiumBps:   []int{60, 80, 100},
	SignalCooldownMs: []int64{500, 1000, 2000},
}

// BrainScore is one row of brain_sweep_scores.csv.
type BrainScore struct {
	BaseRunID        string
	SignalsTotal     int
	SignalsOK        int
	SignalsBad       int
	MinNetEdgeBps    int
	RiskPremiumBps   int
	SignalCooldownMs int64
	TotalPnlSum      float64
	TotalPnlAvg      float64
	AvgSetRatio      float64
	LeggingRate      float64
	Worst20PnlSum    float64
}

// RunBrainSweep regenerates signals from snapshots under every (min_net_edge,
// risk_premium, cooldown) combination in BrainGrid, settles them against
// trades, and scores each combination.
func RunBrainSweep(baseRunID string, snapshots []domain.MarketSnapshot, qReq float64, fillShares ledger.FillShares, dumpSlippage float64, trades *tradestore.Store, windowStartMs, windowEndMs int64) []BrainScore {
	legCount := map[string]int{}
	for _, s := range snapshots {
		legCount[s.MarketID] = len(s.Legs)
	}

	scores := make([]BrainScore, 0, len(BrainGrid.MinNetEdgeBps)*len(BrainGrid.RiskPremiumBps)*len(BrainGrid.SignalCooldownMs))
	for _, minNet := range BrainGrid.MinNetEdgeBps {
		for _, riskPremium := range BrainGrid.RiskPremiumBps {
			for _, cooldown := range BrainGrid.SignalCooldownMs {
				scores = append(scores, scoreBrainCombo(baseRunID, snapshots, legCount, qReq, fillShares, dumpSlippage, trades, windowStartMs, windowEndMs, minNet, riskPremium, cooldown))
			}
		}
	}
	return scores
}

func scoreBrainCombo(baseRunID string, snapshots []domain.MarketSnapshot, legCount map[string]int, qReq float64, fillShares ledger.FillShares, dumpSlippage float64, trades *tradestore.Store, windowStartMs, windowEndMs int64, minNet, riskPremium int, cooldown int64) BrainScore {
	params := signalengine.Params{
		RiskPremiumBps:   bps.Bps(riskPremium),
		MinNetEdgeBps:    bps.Bps(minNet),
		QReq:             qReq,
		SignalCooldownMs: cooldown,
	}
	counters := &health.Counters{}
	engine := signalengine.New(baseRunID, params, legCount, counters)
	for _, snap := range snapshots {
		engine.OnSnapshotAt(snap, snap.TsMs)
	}

	l := ledger.New(baseRunID, windowStartMs, windowEndMs, fillShares, dumpSlippage, trades, counters, "")

	score := BrainScore{BaseRunID: baseRunID, MinNetEdgeBps: minNet, RiskPremiumBps: riskPremium, SignalCooldownMs: cooldown}
	var pnls []float64
	leggingFail := 0

	for {
		select {
		case sig, ok := <-engine.Out():
			if !ok {
				return finishBrainScore(score, pnls, leggingFail)
			}
			score.SignalsTotal++
			row := l.Settle(sig)
			score.SignalsOK++
			score.TotalPnlSum += row.TotalPnl
			score.AvgSetRatio += row.SetRatio
			pnls = append(pnls, row.TotalPnl)
			if row.SetRatio < schema.SetRatioThreshold {
				leggingFail++
			}
		default:
			return finishBrainScore(score, pnls, leggingFail)
		}
	}
}

func finishBrainScore(score BrainScore, pnls []float64, leggingFail int) BrainScore {
	if score.SignalsOK > 0 {
		score.TotalPnlAvg = score.TotalPnlSum / float64(score.SignalsOK)
		score.AvgSetRatio /= float64(score.SignalsOK)
		score.LeggingRate = float64(leggingFail) / float64(score.SignalsOK)
	}
	sort.Float64s(pnls)
	n := 20
	if n > len(pnls) {
		n = len(pnls)
	}
	for _, p := range pnls[:n] {
		score.Worst20PnlSum += p
	}
	return score
}

// SelectBestBrain applies the brain-sweep tie-break rule: maximize
// total_pnl_sum, then minimize legging_rate, then maximize signals_ok, then
// a param-tuple tiebreak that favors the higher (more conservative)
// threshold on every remaining tie.
func SelectBestBrain(scores []BrainScore) (BrainScore, bool) {
	var best BrainScore
	found := false
	for _, s := range scores {
		if s.SignalsOK == 0 {
			continue
		}
		if !found || isBetterBrain(s, best) {
			best = s
			found = true
		}
	}
	return best, found
}

func isBetterBrain(a, b BrainScore) bool {
	if a.TotalPnlSum != b.TotalPnlSum {
		return a.TotalPnlSum > b.TotalPnlSum
	}
	if a.LeggingRate != b.LeggingRate {
		return a.LeggingRate < b.LeggingRate
	}
	if a.SignalsOK != b.SignalsOK {
		return a.SignalsOK > b.SignalsOK
	}
	if a.MinNetEdgeBps != b.MinNetEdgeBps {
		return a.MinNetEdgeBps > b.MinNetEdgeBps
	}
	if a.RiskPremiumBps != b.RiskPremiumBps {
		return a.RiskPremiumBps > b.RiskPremiumBps
	}
	return a.SignalCooldownMs > b.SignalCooldownMs
}
