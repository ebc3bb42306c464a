package runcompare

import (
	"os"
	"path/filepath"
	"testing"

	"razor/internal/runmeta"
	"razor/internal/schema"
)

func writeShadowLog(t *testing.T, dir string, rows [][]string) {
	t.Helper()
	if err := schema.WriteCSVAtomic(filepath.Join(dir, schema.FileShadowLog), schema.ShadowLogHeader, rows); err != nil {
		t.Fatalf("write shadow log: %v", err)
	}
}

func blankRow() []string {
	return make([]string, len(schema.ShadowLogHeader))
}

func TestSummarizeRunDirAggregatesMetricsAndReasons(t *testing.T) {
	dir := t.TempDir()

	meta := &runmeta.RunMeta{RunID: "run_x", SchemaVersion: schema.Version}
	if err := meta.WriteToDir(dir); err != nil {
		t.Fatalf("write run_meta.json: %v", err)
	}

	row1 := blankRow()
	row1[0] = "run_x"
	row1[1] = schema.Version
	row1[8] = "liquid"
	row1[30] = "0.5"
	row1[31] = "0.5"
	row1[32] = "1.0"
	row1[34] = "0.9"
	row1[37] = "NO_TRADES"

	row2 := blankRow()
	row2[0] = "run_x"
	row2[1] = schema.Version
	row2[8] = "thin"
	row2[30] = "-0.1"
	row2[31] = "-0.1"
	row2[32] = "-0.2"
	row2[34] = "0.8"
	row2[37] = "MISSING_BID|NO_TRADES"

	writeShadowLog(t, dir, [][]string{row1, row2})

	s, err := SummarizeRunDir(dir)
	if err != nil {
		t.Fatalf("SummarizeRunDir: %v", err)
	}

	if s.Signals != 2 {
		t.Errorf("Signals = %d, want 2", s.Signals)
	}
	if got := s.TotalPnlSum; !floatNear(got, 0.8) {
		t.Errorf("TotalPnlSum = %v, want 0.8", got)
	}
	if got := s.PnlSetSum; !floatNear(got, 0.4) {
		t.Errorf("PnlSetSum = %v, want 0.4", got)
	}
	if got := s.AvgSetRatio; !floatNear(got, 0.85) {
		t.Errorf("AvgSetRatio = %v, want 0.85", got)
	}
	if got := s.LeggingRate; !floatNear(got, 0.5) {
		t.Errorf("LeggingRate = %v, want 0.5", got)
	}
	if got := s.ByReason["NO_TRADES"].Count; got != 2 {
		t.Errorf("NO_TRADES count = %d, want 2", got)
	}
	if got := s.ByReason["MISSING_BID"].Count; got != 1 {
		t.Errorf("MISSING_BID count = %d, want 1", got)
	}
}

func TestSummarizeRunDirCountsSchemaMismatchAndForeignRows(t *testing.T) {
	dir := t.TempDir()

	meta := &runmeta.RunMeta{RunID: "run_y"}
	if err := meta.WriteToDir(dir); err != nil {
		t.Fatalf("write run_meta.json: %v", err)
	}

	okRow := blankRow()
	okRow[0] = "run_y"
	okRow[1] = schema.Version
	okRow[8] = "liquid"
	okRow[30] = "1"
	okRow[31] = "1"
	okRow[32] = "2"
	okRow[34] = "1"

	mismatchRow := blankRow()
	mismatchRow[0] = "run_y"
	mismatchRow[1] = "razor_v0"

	foreignRow := blankRow()
	foreignRow[0] = "some_other_run"
	foreignRow[1] = schema.Version

	writeShadowLog(t, dir, [][]string{okRow, mismatchRow, foreignRow})

	s, err := SummarizeRunDir(dir)
	if err != nil {
		t.Fatalf("SummarizeRunDir: %v", err)
	}
	if s.RowsTotal != 3 {
		t.Errorf("RowsTotal = %d, want 3", s.RowsTotal)
	}
	if s.RowsSchemaMismatch != 1 {
		t.Errorf("RowsSchemaMismatch = %d, want 1", s.RowsSchemaMismatch)
	}
	if s.Signals != 1 {
		t.Errorf("Signals = %d, want 1 (foreign run_id row must be excluded)", s.Signals)
	}
}

func TestDiscoverRunDirsFindsOnlyDirsWithShadowLog(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"run_a", "run_b", "not_a_run", "run_c"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	writeShadowLog(t, filepath.Join(root, "run_a"), nil)
	writeShadowLog(t, filepath.Join(root, "run_c"), nil)

	dirs, err := DiscoverRunDirs(root)
	if err != nil {
		t.Fatalf("DiscoverRunDirs: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("got %d dirs, want 2: %v", len(dirs), dirs)
	}
	if filepath.Base(dirs[0]) != "run_a" || filepath.Base(dirs[1]) != "run_c" {
		t.Errorf("dirs = %v, want [run_a run_c] in sorted order", dirs)
	}
}

func TestDiscoverRunDirsMissingRootReturnsEmpty(t *testing.T) {
	dirs, err := DiscoverRunDirs(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("DiscoverRunDirs: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("got %d dirs, want 0", len(dirs))
	}
}

func TestWriteRunsSummaryCSVAndMarkdown(t *testing.T) {
	dir := t.TempDir()
	runs := []RunSummary{{
		RunID:       "run_x",
		RunDir:      dir,
		RowsTotal:   1,
		RowsOK:      1,
		Signals:     1,
		TotalPnlSum: 1.5,
		AvgSetRatio: 0.9,
		ByBucket:    map[string]*BucketAgg{"liquid": {Signals: 1, PnlSum: 1.5, SetRatioSum: 0.9}},
		ByReason:    map[string]*ReasonAgg{"OK": {Count: 1, SumPnl: 1.5}},
		ByBucketReason: map[bucketReasonKey]*ReasonAgg{
			{bucket: "liquid", reason: "OK"}: {Count: 1, SumPnl: 1.5},
		},
	}}

	csvPath, err := WriteRunsSummaryCSV(dir, runs)
	if err != nil {
		t.Fatalf("WriteRunsSummaryCSV: %v", err)
	}
	records, err := schema.ReadCSVStrict(csvPath, schema.RunsSummaryHeader)
	if err != nil {
		t.Fatalf("ReadCSVStrict: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0][0] != "run_x" {
		t.Errorf("run_id column = %q, want run_x", records[0][0])
	}

	mdPath, err := WriteRunsSummaryMD(dir, runs)
	if err != nil {
		t.Fatalf("WriteRunsSummaryMD: %v", err)
	}
	if _, err := os.Stat(mdPath); err != nil {
		t.Errorf("markdown file not written: %v", err)
	}
}

func floatNear(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
