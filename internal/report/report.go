// Package report computes run-level totals, bucket and strategy splits, the
// worst 20 signals, and a GO/NO-GO verdict from a shadow log, and renders
// both a machine-readable report.json and a human-readable report.md.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"razor/internal/ledger"
	"razor/internal/schema"
	"razor/internal/sweep"
)

const maxLeggingFailShare = 0.15

// Thresholds are the configurable verdict gates.
type Thresholds struct {
	MinTotalShadowPnL float64
	MinAvgSetRatio    float64
}

// BucketStats aggregates signals, total PnL, and average set ratio for one
// bucket or strategy slice.
type BucketStats struct {
	Signals     int     `json:"signals"`
	TotalPnlSum float64 `json:"total_pnl_sum"`
	AvgSetRatio float64 `json:"avg_set_ratio"`
}

// WorstEntry is one row in the worst_20 list.
type WorstEntry struct {
	SignalID uint64  `json:"signal_id"`
	MarketID string  `json:"market_id"`
	Bucket   string  `json:"bucket"`
	TotalPnl float64 `json:"total_pnl"`
}

// Verdict is the GO/NO-GO outcome plus the reasons behind it.
type Verdict struct {
	Go         bool       `json:"go"`
	Reasons    []string   `json:"reasons"`
	Thresholds Thresholds `json:"thresholds"`
}

// StressSummary recomputes total PnL under harsher assumptions
// (dump slippage 0.10, fill shares scaled by 0.70, and both together),
// for context only: it never changes the verdict.
type StressSummary struct {
	Baseline       float64 `json:"baseline_total_pnl"`
	HighDump       float64 `json:"high_dump_total_pnl"`
	LowFill        float64 `json:"low_fill_total_pnl"`
	HighDumpLowFill float64 `json:"high_dump_low_fill_total_pnl"`
}

// Report is the full report.json document.
type Report struct {
	SchemaVersion string                 `json:"schema_version"`
	RunID         string                 `json:"run_id"`
	Period        Period                 `json:"period"`
	Totals        BucketStats            `json:"totals"`
	ByBucket      map[string]BucketStats `json:"by_bucket"`
	ByStrategy    map[string]BucketStats `json:"by_strategy"`
	Worst20       []WorstEntry           `json:"worst_20"`
	Verdict       Verdict                `json:"verdict"`
	Stress        *StressSummary         `json:"stress,omitempty"`
	RowsTotal     int                    `json:"rows_total"`
	RowsBad       int                    `json:"rows_bad"`
}

// Period is the unix-ms span a report covers.
type Period struct {
	StartUnixMs int64 `json:"start_unix_ms"`
	EndUnixMs   int64 `json:"end_unix_ms"`
}

type fullRow struct {
	signalID    uint64
	marketID    string
	strategy    string
	bucket      string
	totalPnl    float64
	setRatio    float64
	signalTsMs  int64
}

// Compute builds a Report for runID from shadow log rows. Rows whose
// schema_version does not match schema.Version are treated as bad and
// excluded from totals, matching the strict-schema propagation policy.
func Compute(runID string, records [][]string, thresholds Thresholds) Report {
	var rows []fullRow
	rowsBad := 0
	var minTs, maxTs int64

	for _, rec := range records {
		if rec[0] != runID {
			continue
		}
		if rec[1] != schema.Version {
			rowsBad++
			continue
		}
		row := parseFullRow(rec)
		if row.signalTsMs != 0 {
			if minTs == 0 || row.signalTsMs < minTs {
				minTs = row.signalTsMs
			}
			if row.signalTsMs > maxTs {
				maxTs = row.signalTsMs
			}
		}
		rows = append(rows, row)
	}

	totals := BucketStats{}
	byBucket := map[string]BucketStats{}
	byStrategy := map[string]BucketStats{}

	accumulate := func(m map[string]BucketStats, key string, pnl, setRatio float64) {
		s := m[key]
		s.Signals++
		s.TotalPnlSum += pnl
		s.AvgSetRatio += setRatio
		m[key] = s
	}

	for _, row := range rows {
		totals.Signals++
		totals.TotalPnlSum += row.totalPnl
		totals.AvgSetRatio += row.setRatio
		accumulate(byBucket, row.bucket, row.totalPnl, row.setRatio)
		accumulate(byStrategy, row.strategy, row.totalPnl, row.setRatio)
	}
	if totals.Signals > 0 {
		totals.AvgSetRatio /= float64(totals.Signals)
	}
	finalizeAvg(byBucket)
	finalizeAvg(byStrategy)

	sort.Slice(rows, func(i, j int) bool { return rows[i].totalPnl < rows[j].totalPnl })
	n := 20
	if n > len(rows) {
		n = len(rows)
	}
	worst := make([]WorstEntry, 0, n)
	for _, row := range rows[:n] {
		worst = append(worst, WorstEntry{SignalID: row.signalID, MarketID: row.marketID, Bucket: row.bucket, TotalPnl: row.totalPnl})
	}

	leggingFail := 0
	for _, row := range rows {
		if row.setRatio < thresholds.MinAvgSetRatio {
			leggingFail++
		}
	}
	leggingFailShare := 0.0
	if len(rows) > 0 {
		leggingFailShare = float64(leggingFail) / float64(len(rows))
	}

	verdict := computeVerdict(totals.TotalPnlSum, leggingFailShare, thresholds, len(rows) == 0)

	return Report{
		SchemaVersion: schema.Version,
		RunID:         runID,
		Period:        Period{StartUnixMs: minTs, EndUnixMs: maxTs},
		Totals:        totals,
		ByBucket:      byBucket,
		ByStrategy:    byStrategy,
		Worst20:       worst,
		Verdict:       verdict,
		RowsTotal:     len(records),
		RowsBad:       rowsBad,
	}
}

func finalizeAvg(m map[string]BucketStats) {
	for k, s := range m {
		if s.Signals > 0 {
			s.AvgSetRatio /= float64(s.Signals)
		}
		m[k] = s
	}
}

func computeVerdict(totalPnl, leggingFailShare float64, t Thresholds, noRows bool) Verdict {
	var reasons []string
	if noRows {
		reasons = append(reasons, "shadow_log.csv missing or empty for this run")
		return Verdict{Go: false, Reasons: reasons, Thresholds: t}
	}
	pnlOK := totalPnl > t.MinTotalShadowPnL
	leggingOK := leggingFailShare <= maxLeggingFailShare
	if !pnlOK {
		reasons = append(reasons, fmt.Sprintf("total_shadow_pnl %.6f does not exceed min_total_shadow_pnl %.6f", totalPnl, t.MinTotalShadowPnL))
	}
	if !leggingOK {
		reasons = append(reasons, fmt.Sprintf("legging_fail_share %.6f exceeds max %.2f", leggingFailShare, maxLeggingFailShare))
	}
	if pnlOK && leggingOK {
		reasons = append(reasons, "pnl and legging thresholds both satisfied")
	}
	return Verdict{Go: pnlOK && leggingOK, Reasons: reasons, Thresholds: t}
}

func parseFullRow(rec []string) fullRow {
	row := fullRow{marketID: rec[6], strategy: rec[7], bucket: rec[8]}
	row.signalID = parseUint(rec[2])
	row.signalTsMs = parseInt(rec[3])
	row.totalPnl = parseFloat(rec[32])
	row.setRatio = parseFloat(rec[34])
	return row
}

func parseUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// AttachStress recomputes the baseline and 3 harsher scenarios from the
// underlying shadow log rows and attaches them to the report for context.
// Each row is rescored with its own recorded fill share and dump slippage as
// the baseline, so stress deltas isolate the assumption change.
func AttachStress(rpt *Report, runID string, shadowRows []sweep.ShadowLogRow) {
	score := func(fillScale, dumpOverride float64, useDumpOverride bool) float64 {
		total := 0.0
		for _, row := range shadowRows {
			if row.RunID != runID || len(row.Legs) == 0 {
				continue
			}
			fillShare := row.FillShareUsed
			if fillShare <= 0 {
				fillShare = 0.10
				if row.Bucket == "liquid" {
					fillShare = 0.30
				}
			}
			fillShare *= fillScale
			dump := row.DumpSlippage
			if dump <= 0 {
				dump = schema.DumpSlippageAssumed
			}
			if useDumpOverride {
				dump = dumpOverride
			}
			total += ledger.Recompute(row.QReq, row.Legs, fillShare, dump).TotalPnl
		}
		return total
	}

	stress := StressSummary{
		Baseline:        score(1.0, 0, false),
		HighDump:        score(1.0, 0.10, true),
		LowFill:         score(0.70, 0, false),
		HighDumpLowFill: score(0.70, 0.10, true),
	}
	rpt.Stress = &stress
}

// RenderMarkdown produces the human-readable report.md document.
func RenderMarkdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run Report: %s\n\n", r.RunID)
	fmt.Fprintf(&b, "schema_version: %s\n\n", r.SchemaVersion)
	fmt.Fprintf(&b, "## Totals\n\nsignals: %d\ntotal_shadow_pnl: %s\navg_set_ratio: %.6f\n\n",
		r.Totals.Signals, decimal.NewFromFloat(r.Totals.TotalPnlSum).StringFixed(6), r.Totals.AvgSetRatio)

	if r.Stress != nil {
		fmt.Fprintf(&b, "## Stress\n\nbaseline: %.6f\nhigh_dump: %.6f\nlow_fill: %.6f\nhigh_dump_low_fill: %.6f\n\n",
			r.Stress.Baseline, r.Stress.HighDump, r.Stress.LowFill, r.Stress.HighDumpLowFill)
	}

	fmt.Fprintf(&b, "## By Bucket\n\n")
	for _, k := range sortedKeys(r.ByBucket) {
		s := r.ByBucket[k]
		fmt.Fprintf(&b, "- %s: signals=%d total_pnl_sum=%.6f avg_set_ratio=%.6f\n", k, s.Signals, s.TotalPnlSum, s.AvgSetRatio)
	}

	fmt.Fprintf(&b, "\n## By Strategy\n\n")
	for _, k := range sortedKeys(r.ByStrategy) {
		s := r.ByStrategy[k]
		fmt.Fprintf(&b, "- %s: signals=%d total_pnl_sum=%.6f avg_set_ratio=%.6f\n", k, s.Signals, s.TotalPnlSum, s.AvgSetRatio)
	}

	fmt.Fprintf(&b, "\n## Worst 20\n\n")
	for _, w := range r.Worst20 {
		fmt.Fprintf(&b, "- signal_id=%d market_id=%s bucket=%s total_pnl=%.6f\n", w.SignalID, w.MarketID, w.Bucket, w.TotalPnl)
	}

	fmt.Fprintf(&b, "\n## Verdict\n\ngo: %v\nreasons:\n", r.Verdict.Go)
	for _, reason := range r.Verdict.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	return b.String()
}

// sortedKeys returns a map's keys in sorted order, so Markdown rendering is
// stable across runs despite Go's randomized map iteration order.
func sortedKeys(m map[string]BucketStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteJSON writes report.json atomically.
func WriteJSON(path string, r Report) error {
	return schema.WriteJSONAtomic(path, r)
}

// WriteMarkdown writes report.md atomically.
func WriteMarkdown(path string, r Report) error {
	return schema.WriteTextAtomic(path, RenderMarkdown(r))
}
