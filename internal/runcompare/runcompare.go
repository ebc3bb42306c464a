// Package runcompare discovers every run directory under a data root,
// summarizes each run's shadow log into per-bucket and per-reason
// aggregates, and writes a combined runs_summary.csv plus a Markdown digest.
package runcompare

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"razor/internal/runmeta"
	"razor/internal/schema"
	"razor/internal/sweep"
)

const setRatioThreshold = schema.SetRatioThreshold

// BucketAgg aggregates total pnl and set ratio across every signal in a
// bucket (liquid, thin, or unknown).
type BucketAgg struct {
	Signals     int64
	PnlSum      float64
	SetRatioSum float64
}

func (b *BucketAgg) push(pnl, setRatio float64) {
	b.Signals++
	b.PnlSum += pnl
	b.SetRatioSum += setRatio
}

// AvgSetRatio returns 0 for an empty bucket rather than dividing by zero.
func (b BucketAgg) AvgSetRatio() float64 {
	if b.Signals == 0 {
		return 0
	}
	return b.SetRatioSum / float64(b.Signals)
}

// ReasonAgg aggregates occurrence count and summed pnl for one reason code.
type ReasonAgg struct {
	Count  int64
	SumPnl float64
}

func (r *ReasonAgg) push(pnl float64) {
	r.Count++
	r.SumPnl += pnl
}

type bucketReasonKey struct {
	bucket string
	reason string
}

// RunSummary is one run directory's aggregated shadow-log statistics.
type RunSummary struct {
	RunID  string
	RunDir string

	RowsTotal           int64
	RowsOK              int64
	RowsBad             int64
	RowsSchemaMismatch  int64

	Signals          int64
	TotalPnlSum      float64
	PnlSetSum        float64
	PnlLeftTotalSum  float64
	AvgSetRatio      float64
	LeggingRate      float64

	ByBucket       map[string]*BucketAgg
	ByReason       map[string]*ReasonAgg
	ByBucketReason map[bucketReasonKey]*ReasonAgg
}

// DiscoverRunDirs lists every run_* subdirectory of dataDir that contains a
// shadow_log.csv, sorted by name. A missing dataDir yields an empty list,
// not an error: a fresh data root simply has nothing to compare yet.
func DiscoverRunDirs(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dataDir, err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "run_") {
			continue
		}
		dir := filepath.Join(dataDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, schema.FileShadowLog)); err == nil {
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// SummarizeRunDir reads runDir's shadow_log.csv and aggregates it into a
// RunSummary. The run id is taken from run_meta.json when present,
// otherwise inferred from the last non-empty run_id column in the log.
func SummarizeRunDir(runDir string) (RunSummary, error) {
	shadowPath := filepath.Join(runDir, schema.FileShadowLog)
	if _, err := os.Stat(shadowPath); err != nil {
		return RunSummary{}, fmt.Errorf("missing %s", shadowPath)
	}

	runID := ""
	if meta, err := runmeta.ReadFromDir(runDir); err == nil {
		runID = meta.RunID
	}

	records, err := schema.ReadCSVStrict(shadowPath, schema.ShadowLogHeader)
	if err != nil {
		return RunSummary{}, err
	}

	if runID == "" {
		runID, err = inferLastRunID(records)
		if err != nil {
			return RunSummary{}, err
		}
	}

	return summarizeRecords(records, runID, runDir), nil
}

func inferLastRunID(records [][]string) (string, error) {
	last := ""
	for _, rec := range records {
		if v := strings.TrimSpace(rec[0]); v != "" {
			last = v
		}
	}
	if last == "" {
		return "", fmt.Errorf("run_id not found in shadow_log.csv")
	}
	return last, nil
}

func summarizeRecords(records [][]string, runID, runDir string) RunSummary {
	s := RunSummary{
		RunID:          runID,
		RunDir:         runDir,
		ByBucket:       make(map[string]*BucketAgg),
		ByReason:       make(map[string]*ReasonAgg),
		ByBucketReason: make(map[bucketReasonKey]*ReasonAgg),
	}

	var setRatioSum float64
	var leggingMiss int64

	for _, rec := range records {
		s.RowsTotal++
		if len(rec) != len(schema.ShadowLogHeader) {
			s.RowsBad++
			continue
		}

		if strings.TrimSpace(rec[0]) != runID {
			continue
		}

		if !strings.EqualFold(strings.TrimSpace(rec[1]), schema.Version) {
			s.RowsSchemaMismatch++
			continue
		}

		bucketKey := normalizeBucket(rec[8])

		totalPnl, ok1 := parseFinite(rec[32])
		pnlSet, ok2 := parseFinite(rec[30])
		pnlLeft, ok3 := parseFinite(rec[31])
		setRatio, ok4 := parseFinite(rec[34])
		if !ok1 || !ok2 || !ok3 || !ok4 {
			s.RowsBad++
			continue
		}

		s.RowsOK++
		s.Signals++
		s.TotalPnlSum += totalPnl
		s.PnlSetSum += pnlSet
		s.PnlLeftTotalSum += pnlLeft
		setRatioSum += setRatio
		if setRatio < setRatioThreshold {
			leggingMiss++
		}

		agg, ok := s.ByBucket[bucketKey]
		if !ok {
			agg = &BucketAgg{}
			s.ByBucket[bucketKey] = agg
		}
		agg.push(totalPnl, setRatio)

		for _, reason := range sweep.ParseNotesReasons(rec[37]) {
			rAgg, ok := s.ByReason[reason]
			if !ok {
				rAgg = &ReasonAgg{}
				s.ByReason[reason] = rAgg
			}
			rAgg.push(totalPnl)

			key := bucketReasonKey{bucket: bucketKey, reason: reason}
			brAgg, ok := s.ByBucketReason[key]
			if !ok {
				brAgg = &ReasonAgg{}
				s.ByBucketReason[key] = brAgg
			}
			brAgg.push(totalPnl)
		}
	}

	if s.Signals > 0 {
		s.AvgSetRatio = setRatioSum / float64(s.Signals)
		s.LeggingRate = float64(leggingMiss) / float64(s.Signals)
	}

	return s
}

func normalizeBucket(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "liquid":
		return "liquid"
	case "thin":
		return "thin"
	default:
		return "unknown"
	}
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// WriteRunsSummaryCSV writes the 24-column runs_summary.csv into outDir.
func WriteRunsSummaryCSV(outDir string, runs []RunSummary) (string, error) {
	path := filepath.Join(outDir, schema.FileRunsSummary)
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, runSummaryRecord(r))
	}
	if err := schema.WriteCSVAtomic(path, schema.RunsSummaryHeader, rows); err != nil {
		return "", err
	}
	return path, nil
}

func runSummaryRecord(r RunSummary) []string {
	liquid := bucketOrZero(r.ByBucket, "liquid")
	thin := bucketOrZero(r.ByBucket, "thin")
	unknown := bucketOrZero(r.ByBucket, "unknown")

	top := topReasons(r.ByReason, 2)
	var top1Reason, top2Reason string
	var top1Count int64
	if len(top) > 0 {
		top1Reason, top1Count = top[0].reason, top[0].agg.Count
	}
	if len(top) > 1 {
		top2Reason = top[1].reason
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	i := func(v int64) string { return strconv.FormatInt(v, 10) }

	return []string{
		r.RunID, r.RunDir,
		i(r.RowsTotal), i(r.RowsOK), i(r.RowsBad), i(r.RowsSchemaMismatch),
		i(r.Signals), f(r.TotalPnlSum), f(r.PnlSetSum), f(r.PnlLeftTotalSum),
		f(r.AvgSetRatio), f(r.LeggingRate),
		i(liquid.Signals), f(liquid.PnlSum), f(liquid.AvgSetRatio()),
		i(thin.Signals), f(thin.PnlSum), f(thin.AvgSetRatio()),
		i(unknown.Signals), f(unknown.PnlSum), f(unknown.AvgSetRatio()),
		top1Reason, i(top1Count), top2Reason,
	}
}

func bucketOrZero(m map[string]*BucketAgg, key string) BucketAgg {
	if agg, ok := m[key]; ok {
		return *agg
	}
	return BucketAgg{}
}

type reasonRank struct {
	reason string
	agg    ReasonAgg
}

// topReasons ranks reasons by descending count, breaking ties
// lexicographically by reason name for determinism.
func topReasons(m map[string]*ReasonAgg, n int) []reasonRank {
	ranked := make([]reasonRank, 0, len(m))
	for reason, agg := range m {
		ranked = append(ranked, reasonRank{reason: reason, agg: *agg})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].agg.Count != ranked[j].agg.Count {
			return ranked[i].agg.Count > ranked[j].agg.Count
		}
		return ranked[i].reason < ranked[j].reason
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
