package sweep

import (
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"razor/internal/schema"
)

// WriteSweepScoresCSV writes sweep_scores.csv for a Shadow Sweep run.
func WriteSweepScoresCSV(path string, scores []ShadowScore) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			s.RunID,
			strconv.Itoa(s.RowsTotal), strconv.Itoa(s.RowsOK), strconv.Itoa(s.RowsBad),
			f(s.FillShareLiquid), f(s.FillShareThin), f(s.DumpSlippageAssumed),
			f(s.SetRatioThreshold), f(s.TotalPnlSum), f(s.TotalPnlAvg),
			f(s.SetRatioAvg), f(s.LeggingRate), f(s.Worst20PnlSum),
		})
	}
	return schema.WriteCSVAtomic(path, schema.SweepScoresHeader, rows)
}

// bestPatchDoc is the TOML document shape written to best_patch.toml.
type bestPatchDoc struct {
	InsufficientData bool              `toml:"insufficient_data,omitempty"`
	ShadowSweepBest  *shadowSweepBest  `toml:"shadow_sweep_best,omitempty"`
	Buckets          *bucketsPatch     `toml:"buckets,omitempty"`
	Shadow           *shadowPatch      `toml:"shadow,omitempty"`
}

type shadowSweepBest struct {
	FillShareLiquid     float64 `toml:"fill_share_liquid"`
	FillShareThin       float64 `toml:"fill_share_thin"`
	DumpSlippageAssumed float64 `toml:"dump_slippage_assumed"`
	TotalPnlSum         float64 `toml:"total_pnl_sum"`
	SetRatioAvg         float64 `toml:"set_ratio_avg"`
	LeggingRate         float64 `toml:"legging_rate"`
}

type bucketsPatch struct {
	FillShareLiquidP25 float64 `toml:"fill_share_liquid_p25"`
	FillShareThinP25   float64 `toml:"fill_share_thin_p25"`
}

type shadowPatch struct {
	DumpSlippageAssumed float64 `toml:"dump_slippage_assumed"`
}

// WriteBestPatchTOML writes best_patch.toml: the winning shadow-sweep
// parameters under a [shadow_sweep_best] section, or an
// insufficient_data marker if no row scored.
func WriteBestPatchTOML(path string, best ShadowScore, found bool) error {
	var doc bestPatchDoc
	if !found {
		doc.InsufficientData = true
	} else {
		doc.ShadowSweepBest = &shadowSweepBest{
			FillShareLiquid:     best.FillShareLiquid,
			FillShareThin:       best.FillShareThin,
			DumpSlippageAssumed: best.DumpSlippageAssumed,
			TotalPnlSum:         best.TotalPnlSum,
			SetRatioAvg:         best.SetRatioAvg,
			LeggingRate:         best.LeggingRate,
		}
		doc.Buckets = &bucketsPatch{FillShareLiquidP25: best.FillShareLiquid, FillShareThinP25: best.FillShareThin}
		doc.Shadow = &shadowPatch{DumpSlippageAssumed: best.DumpSlippageAssumed}
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return err
	}
	return schema.WriteTextAtomic(path, string(data))
}

// SweepRecommendation is the JSON summary of a Shadow Sweep run, containing
// the top-10 scores by the same ordering as SelectBest.
type SweepRecommendation struct {
	SelectionRule string        `json:"selection_rule"`
	Top10         []ShadowScore `json:"top10"`
	Best          *ShadowScore  `json:"best,omitempty"`
}

// WriteSweepRecommendationJSON writes sweep_recommendation.json.
func WriteSweepRecommendationJSON(path string, scores []ShadowScore) error {
	ranked := append([]ShadowScore(nil), scores...)
	sort.Slice(ranked, func(i, j int) bool { return isBetterShadow(ranked[i], ranked[j]) })

	n := 10
	if n > len(ranked) {
		n = len(ranked)
	}
	rec := SweepRecommendation{
		SelectionRule: "maximize total_pnl_sum, then set_ratio_avg, then minimize legging_rate, then maximize worst_20_pnl_sum, then lexicographic param tiebreak",
		Top10:         ranked[:n],
	}
	if best, ok := SelectBest(scores); ok {
		rec.Best = &best
	}
	return schema.WriteJSONAtomic(path, rec)
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
