// Command razor is the online dry-run runner: it resolves market metadata,
// subscribes to live book/price-change/trade feeds, evaluates every
// snapshot for arbitrage edge, and settles admitted signals against the
// public trade tape, writing shadow_log.csv and its companion artifacts to
// a fresh run directory until it receives SIGINT or SIGTERM.
//
// It never signs or places an order: every collaborator it wires talks to
// public, unauthenticated Polymarket endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"razor/internal/config"
	"razor/internal/engine"
	"razor/internal/runmeta"
	"razor/internal/schema"
)

func main() {
	cfgPath := "configs/config.toml"
	if p := os.Getenv("RAZOR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	runID := fmt.Sprintf("run_%d", time.Now().UnixMilli())
	runDir := filepath.Join(cfg.Run.DataDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Error("failed to create run directory", "error", err, "run_dir", runDir)
		os.Exit(1)
	}

	meta := &runmeta.RunMeta{
		RunID:            runID,
		SchemaVersion:    schema.Version,
		GitSHA:           runmeta.EnvGitSHA(),
		StartTsUnixMs:    time.Now().UnixMilli(),
		ConfigPath:       cfgPath,
		TradeTsSource:    "local",
		NotesEnumVersion: "v1",
	}
	if err := meta.WriteToDir(runDir); err != nil {
		logger.Error("failed to write run_meta.json", "error", err)
		os.Exit(1)
	}
	if err := schema.WriteVersionFile(runDir); err != nil {
		logger.Error("failed to write schema_version.json", "error", err)
		os.Exit(1)
	}
	snapshotConfig(cfgPath, filepath.Join(runDir, schema.FileConfigSnapshot), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, cfg, runID, runDir, logger)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	eng.Start()
	logger.Info("razor started", "run_id", runID, "run_dir", runDir, "markets", cfg.Run.MarketIDs)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// snapshotConfig best-effort copies the config file used for this run into
// the run directory, so later tools (replay, sweep) can reload the exact
// settings a run was produced under.
func snapshotConfig(srcPath, dstPath string, logger *slog.Logger) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		logger.Warn("could not snapshot config into run dir", "error", err)
		return
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		logger.Warn("could not write config snapshot", "error", err)
	}
}
