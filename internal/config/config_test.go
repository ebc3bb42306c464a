package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
[run]
market_ids = ["0xabc"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Brain.MinNetEdgeBps != 10 {
		t.Errorf("MinNetEdgeBps default = %d, want 10", cfg.Brain.MinNetEdgeBps)
	}
	if cfg.Buckets.FillShareLiquidP25 != 0.30 {
		t.Errorf("FillShareLiquidP25 default = %v, want 0.30", cfg.Buckets.FillShareLiquidP25)
	}
	if cfg.Shadow.WindowEndMs != 1100 {
		t.Errorf("WindowEndMs default = %d, want 1100", cfg.Shadow.WindowEndMs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsEmptyMarketIDs(t *testing.T) {
	cfg := &Config{Brain: BrainConfig{QReq: 10}, Buckets: BucketConfig{FillShareLiquidP25: 0.3, FillShareThinP25: 0.1}, Shadow: ShadowConfig{WindowStartMs: 100, WindowEndMs: 1100}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty market_ids")
	}
}
