// Package walkforward partitions a recorded shadow log into UTC days and
// grid-searches Shadow Sweep parameters on each day's training prefix,
// scoring the held-out validate day to estimate how much a chosen parameter
// set overfits to its training window.
package walkforward

import (
	"sort"
	"strconv"

	"razor/internal/schema"
	"razor/internal/sweep"
)

func itoa(v int) string     { return strconv.Itoa(v) }
func itoa64(v int64) string { return strconv.FormatInt(v, 10) }
func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// Step is one train/validate evaluation for a single held-out day.
type Step struct {
	DayStartUnixMs   int64             `json:"day_start_unix_ms"`
	TrainPnlSum      float64           `json:"train_pnl_sum"`
	ValPnlSum        float64           `json:"val_pnl_sum"`
	TrainLeggingRate float64           `json:"train_legging_rate"`
	ValLeggingRate   float64           `json:"val_legging_rate"`
	PnlDropRatio     float64           `json:"pnl_drop_ratio"`
	LeggingDrift     float64           `json:"legging_drift"`
	StepRisk         float64           `json:"step_risk"`
	ChosenParams     sweep.ShadowScore `json:"chosen_params"`
}

// Report is the walk_forward.json document.
type Report struct {
	Version          string   `json:"version"`
	Grid             Grid     `json:"grid"`
	SelectionRule    string   `json:"selection_rule"`
	Steps            []Step   `json:"steps"`
	OverfitRiskScore float64  `json:"overfit_risk_score"`
	Notes            []string `json:"notes"`
}

// Grid mirrors sweep.ShadowGrid for JSON embedding.
type Grid struct {
	FillShareLiquidValues []float64 `json:"fill_share_liquid_values"`
	FillShareThinValues   []float64 `json:"fill_share_thin_values"`
	DumpSlippageValues    []float64 `json:"dump_slippage_values"`
}

// DailyScore is one row of daily_scores.csv.
type DailyScore struct {
	RunID          string
	DayStartUnixMs int64
	Signals        int
	TotalPnlSum    float64
	TotalPnlAvg    float64
	AvgSetRatio    float64
	LeggingRate    float64
	Worst20PnlSum  float64
}

// Run partitions rows by day, grid-searches train on every day prefix, and
// scores the next day as the held-out validate set.
func Run(runID string, rows []sweep.ShadowLogRow, dayMsOf func(sweep.ShadowLogRow) int64) ([]DailyScore, Report) {
	grid := sweep.DefaultShadowGrid()

	days := groupByDay(rows, dayMsOf)
	dayKeys := sortedKeys(days)

	dailyScores := make([]DailyScore, 0, len(dayKeys))
	for _, day := range dayKeys {
		dailyScores = append(dailyScores, scoreDay(runID, day, days[day], grid))
	}

	var steps []Step
	for i := 1; i < len(dayKeys); i++ {
		var train []sweep.ShadowLogRow
		for _, d := range dayKeys[:i] {
			train = append(train, days[d]...)
		}
		val := days[dayKeys[i]]

		trainScores := sweep.RunShadowSweep(runID, train, grid)
		best, ok := sweep.SelectBest(trainScores)
		if !ok {
			continue
		}
		valScores := scoreWith(runID, val, best.FillShareLiquid, best.FillShareThin, best.DumpSlippageAssumed)

		pnlDropRatio := 0.0
		if denom := maxAbs(best.TotalPnlSum, 1e-9); denom > 0 {
			drop := (best.TotalPnlSum - valScores.TotalPnlSum) / denom
			if drop > 0 {
				pnlDropRatio = drop
			}
		}
		leggingDrift := absF(valScores.LeggingRate - best.LeggingRate)
		stepRisk := pnlDropRatio + leggingDrift

		steps = append(steps, Step{
			DayStartUnixMs:   dayKeys[i],
			TrainPnlSum:      best.TotalPnlSum,
			ValPnlSum:        valScores.TotalPnlSum,
			TrainLeggingRate: best.LeggingRate,
			ValLeggingRate:   valScores.LeggingRate,
			PnlDropRatio:     pnlDropRatio,
			LeggingDrift:     leggingDrift,
			StepRisk:         stepRisk,
			ChosenParams:     best,
		})
	}

	overfitRisk := 1.0
	if len(steps) > 0 {
		sum := 0.0
		for _, s := range steps {
			sum += s.StepRisk
		}
		overfitRisk = sum / float64(len(steps))
	}

	report := Report{
		Version: "walk_forward_v1",
		Grid: Grid{
			FillShareLiquidValues: grid.FillShareLiquidValues,
			FillShareThinValues:   grid.FillShareThinValues,
			DumpSlippageValues:    grid.DumpSlippageValues,
		},
		SelectionRule:    "per-day train/validate split, best params chosen on train via Shadow Sweep rule, scored on next day",
		Steps:            steps,
		OverfitRiskScore: overfitRisk,
	}
	if len(steps) == 0 {
		report.Notes = append(report.Notes, "fewer than 2 days of data: overfit_risk_score defaults to 1.0")
	}

	return dailyScores, report
}

func scoreDay(runID string, day int64, rows []sweep.ShadowLogRow, grid sweep.ShadowGrid) DailyScore {
	scores := sweep.RunShadowSweep(runID, rows, grid)
	best, ok := sweep.SelectBest(scores)
	if !ok {
		return DailyScore{RunID: runID, DayStartUnixMs: day}
	}
	return DailyScore{
		RunID: runID, DayStartUnixMs: day,
		Signals:       best.RowsOK,
		TotalPnlSum:   best.TotalPnlSum,
		TotalPnlAvg:   best.TotalPnlAvg,
		AvgSetRatio:   best.SetRatioAvg,
		LeggingRate:   best.LeggingRate,
		Worst20PnlSum: best.Worst20PnlSum,
	}
}

func scoreWith(runID string, rows []sweep.ShadowLogRow, fillLiquid, fillThin, dumpSlippage float64) sweep.ShadowScore {
	grid := sweep.ShadowGrid{
		FillShareLiquidValues: []float64{fillLiquid},
		FillShareThinValues:   []float64{fillThin},
		DumpSlippageValues:    []float64{dumpSlippage},
	}
	scores := sweep.RunShadowSweep(runID, rows, grid)
	if len(scores) == 0 {
		return sweep.ShadowScore{}
	}
	return scores[0]
}

func groupByDay(rows []sweep.ShadowLogRow, dayMsOf func(sweep.ShadowLogRow) int64) map[int64][]sweep.ShadowLogRow {
	days := map[int64][]sweep.ShadowLogRow{}
	for _, row := range rows {
		day := dayMsOf(row)
		days[day] = append(days[day], row)
	}
	return days
}

func sortedKeys(m map[int64][]sweep.ShadowLogRow) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// DayStartMs buckets a unix-ms timestamp into its containing day start.
func DayStartMs(tsMs int64) int64 {
	return (tsMs / schema.DayMs) * schema.DayMs
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxAbs(v, floor float64) float64 {
	a := absF(v)
	if a > floor {
		return a
	}
	return floor
}

// WriteDailyScoresCSV writes daily_scores.csv.
func WriteDailyScoresCSV(path string, scores []DailyScore) error {
	rows := make([][]string, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []string{
			s.RunID, itoa64(s.DayStartUnixMs), itoa(s.Signals),
			ftoa(s.TotalPnlSum), ftoa(s.TotalPnlAvg), ftoa(s.AvgSetRatio),
			ftoa(s.LeggingRate), ftoa(s.Worst20PnlSum),
		})
	}
	return schema.WriteCSVAtomic(path, schema.DailyScoresHeader, rows)
}

// WriteWalkForwardJSON writes walk_forward.json.
func WriteWalkForwardJSON(path string, report Report) error {
	return schema.WriteJSONAtomic(path, report)
}
