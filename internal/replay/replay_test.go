package replay

import (
	"os"
	"path/filepath"
	"testing"

	"razor/internal/config"
	"razor/internal/schema"
)

func writeCSV(t *testing.T, path string, header []string, rows [][]string) {
	t.Helper()
	if err := schema.WriteCSVAtomic(path, header, rows); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRunProducesDeterministicShadowLog(t *testing.T) {
	dir := t.TempDir()

	writeCSV(t, filepath.Join(dir, schema.FileSnapshots), schema.SnapshotsHeader, [][]string{
		{"0", "m1", "2", "tokA", "0.47", "0.48", "1000", "tokB", "0.48", "0.49", "1000", "", "", "", ""},
	})
	writeCSV(t, filepath.Join(dir, schema.FileTrades), schema.TradesHeader, [][]string{
		{"500", "m1", "tokA", "0.48", "50", "t1", "500", "0"},
		{"500", "m1", "tokB", "0.49", "20", "t2", "500", "0"},
	})

	cfg := &config.Config{
		Brain:   config.BrainConfig{RiskPremiumBps: 80, MinNetEdgeBps: 10, QReq: 10, SignalCooldownMs: 1000},
		Buckets: config.BucketConfig{FillShareLiquidP25: 0.30, FillShareThinP25: 0.10},
		Shadow:  config.ShadowConfig{WindowStartMs: 100, WindowEndMs: 1100, TradeRetentionMs: 60_000},
	}

	res, err := Run(dir, "replay1", cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RowsWritten != 1 {
		t.Fatalf("RowsWritten = %d, want 1", res.RowsWritten)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Fatalf("expected output file to exist: %v", err)
	}

	rows, err := schema.ReadCSVStrict(res.OutputPath, schema.ShadowLogHeader)
	if err != nil {
		t.Fatalf("ReadCSVStrict: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}
