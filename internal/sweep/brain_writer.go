package sweep

import (
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"razor/internal/schema"
)

// WriteBrainSweepScoresCSV writes brain_sweep_scores.csv.
func WriteBrainSweepScoresCSV(path string, scores []BrainScore) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			s.BaseRunID,
			strconv.Itoa(s.SignalsTotal), strconv.Itoa(s.SignalsOK), strconv.Itoa(s.SignalsBad),
			strconv.Itoa(s.MinNetEdgeBps), strconv.Itoa(s.RiskPremiumBps), strconv.FormatInt(s.SignalCooldownMs, 10),
			f(s.TotalPnlSum), f(s.TotalPnlAvg), f(s.AvgSetRatio), f(s.LeggingRate), f(s.Worst20PnlSum),
		})
	}
	return schema.WriteCSVAtomic(path, schema.BrainSweepScoresHeader, rows)
}

type bestBrainPatchDoc struct {
	InsufficientData bool        `toml:"insufficient_data,omitempty"`
	Brain            *brainPatch `toml:"brain,omitempty"`
}

type brainPatch struct {
	MinNetEdgeBps    int   `toml:"min_net_edge_bps"`
	RiskPremiumBps   int   `toml:"risk_premium_bps"`
	SignalCooldownMs int64 `toml:"signal_cooldown_ms"`
}

// WriteBestBrainPatchTOML writes best_brain_patch.toml.
func WriteBestBrainPatchTOML(path string, best BrainScore, found bool) error {
	var doc bestBrainPatchDoc
	if !found {
		doc.InsufficientData = true
	} else {
		doc.Brain = &brainPatch{
			MinNetEdgeBps:    best.MinNetEdgeBps,
			RiskPremiumBps:   best.RiskPremiumBps,
			SignalCooldownMs: best.SignalCooldownMs,
		}
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return err
	}
	return schema.WriteTextAtomic(path, string(data))
}
