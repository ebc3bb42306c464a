package sweep

import (
	"fmt"
	"math"
	"sort"

	"razor/internal/ledger"
	"razor/internal/schema"
)

// ShadowGrid is the parameter space explored by the Shadow Sweep.
type ShadowGrid struct {
	FillShareLiquidValues []float64
	FillShareThinValues   []float64
	DumpSlippageValues    []float64
}

// DefaultShadowGrid is the standard grid, shared with the walk-forward
// splitter so both tools explore the same parameter space.
func DefaultShadowGrid() ShadowGrid {
	return ShadowGrid{
		FillShareLiquidValues: []float64{0.20, 0.30, 0.40},
		FillShareThinValues:   []float64{0.05, 0.10, 0.15},
		DumpSlippageValues:    []float64{0.03, 0.05, 0.10},
	}
}

// Sanitize drops non-finite or out-of-range values and sorts each axis, so
// a hand-edited grid cannot poison the scores or perturb their order.
func (g ShadowGrid) Sanitize() ShadowGrid {
	clean := func(vs []float64) []float64 {
		out := make([]float64, 0, len(vs))
		for _, v := range vs {
			if !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 && v <= 1 {
				out = append(out, v)
			}
		}
		sort.Float64s(out)
		return out
	}
	return ShadowGrid{
		FillShareLiquidValues: clean(g.FillShareLiquidValues),
		FillShareThinValues:   clean(g.FillShareThinValues),
		DumpSlippageValues:    clean(g.DumpSlippageValues),
	}
}

// ShadowScore is one row of sweep_scores.csv: the aggregate outcome of one
// (fill_share_liquid, fill_share_thin, dump_slippage) combination over a run.
type ShadowScore struct {
	RunID               string  `json:"run_id"`
	RowsTotal           int     `json:"rows_total"`
	RowsOK              int     `json:"rows_ok"`
	RowsBad             int     `json:"rows_bad"`
	FillShareLiquid     float64 `json:"fill_share_liquid"`
	FillShareThin       float64 `json:"fill_share_thin"`
	DumpSlippageAssumed float64 `json:"dump_slippage_assumed"`
	SetRatioThreshold   float64 `json:"set_ratio_threshold"`
	TotalPnlSum         float64 `json:"total_pnl_sum"`
	TotalPnlAvg         float64 `json:"total_pnl_avg"`
	SetRatioAvg         float64 `json:"set_ratio_avg"`
	LeggingRate         float64 `json:"legging_rate"`
	Worst20PnlSum       float64 `json:"worst_20_pnl_sum"`
}

// RunShadowSweep scores every combination in grid against rows.
func RunShadowSweep(runID string, rows []ShadowLogRow, grid ShadowGrid) []ShadowScore {
	grid = grid.Sanitize()
	scores := make([]ShadowScore, 0, len(grid.FillShareLiquidValues)*len(grid.FillShareThinValues)*len(grid.DumpSlippageValues))

	for _, fl := range grid.FillShareLiquidValues {
		for _, ft := range grid.FillShareThinValues {
			for _, ds := range grid.DumpSlippageValues {
				scores = append(scores, scoreCombo(runID, rows, fl, ft, ds))
			}
		}
	}
	return scores
}

func scoreCombo(runID string, rows []ShadowLogRow, fillLiquid, fillThin, dumpSlippage float64) ShadowScore {
	score := ShadowScore{
		RunID:               runID,
		FillShareLiquid:     fillLiquid,
		FillShareThin:       fillThin,
		DumpSlippageAssumed: dumpSlippage,
		SetRatioThreshold:   schema.SetRatioThreshold,
	}

	var pnls []float64
	leggingFail := 0

	for _, row := range rows {
		score.RowsTotal++
		if len(row.Legs) == 0 {
			score.RowsBad++
			continue
		}
		fillShare := fillThin
		if row.Bucket == "liquid" {
			fillShare = fillLiquid
		}
		res := ledger.Recompute(row.QReq, row.Legs, fillShare, dumpSlippage)
		score.RowsOK++
		score.TotalPnlSum += res.TotalPnl
		score.SetRatioAvg += res.SetRatio
		pnls = append(pnls, res.TotalPnl)
		if res.SetRatio < schema.SetRatioThreshold {
			leggingFail++
		}
	}

	if score.RowsOK > 0 {
		score.TotalPnlAvg = score.TotalPnlSum / float64(score.RowsOK)
		score.SetRatioAvg /= float64(score.RowsOK)
		score.LeggingRate = float64(leggingFail) / float64(score.RowsOK)
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

// SelectBest applies the deterministic tie-break rule: maximize
// total_pnl_sum, then set_ratio_avg, then minimize legging_rate, then
// maximize worst_20_pnl_sum, then a lexicographic parameter-tuple tiebreak.
func SelectBest(scores []ShadowScore) (ShadowScore, bool) {
	var best ShadowScore
	found := false
	for _, s := range scores {
		if s.RowsOK == 0 {
			continue
		}
		if !found || isBetterShadow(s, best) {
			best = s
			found = true
		}
	}
	return best, found
}

func isBetterShadow(a, b ShadowScore) bool {
	if a.TotalPnlSum != b.TotalPnlSum {
		return a.TotalPnlSum > b.TotalPnlSum
	}
	if a.SetRatioAvg != b.SetRatioAvg {
		return a.SetRatioAvg > b.SetRatioAvg
	}
	if a.LeggingRate != b.LeggingRate {
		return a.LeggingRate < b.LeggingRate
	}
	if a.Worst20PnlSum != b.Worst20PnlSum {
		return a.Worst20PnlSum > b.Worst20PnlSum
	}
	return paramTuple(a) < paramTuple(b)
}

func paramTuple(s ShadowScore) string {
	return fmt.Sprintf("%.6f|%.6f|%.6f", s.FillShareLiquid, s.FillShareThin, s.DumpSlippageAssumed)
}
