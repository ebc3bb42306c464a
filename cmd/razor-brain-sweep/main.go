// Command razor-brain-sweep grid-searches Signal Engine thresholds
// (min net edge, risk premium, cooldown) by replaying a recorded
// snapshots.csv/trades.csv tape under every combination in the fixed brain
// grid, writing brain_sweep_scores.csv and best_brain_patch.toml.
package main

import (
	"flag"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"razor/internal/config"
	"razor/internal/ledger"
	"razor/internal/replay"
	"razor/internal/schema"
	"razor/internal/sweep"
	"razor/internal/tradestore"
)

func main() {
	runDir := flag.String("run-dir", "", "run directory containing snapshots.csv and trades.csv")
	cfgPath := flag.String("config", "", "config file (defaults to <run-dir>/config.toml)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if *runDir == "" {
		logger.Error("-run-dir is required")
		os.Exit(1)
	}
	if *cfgPath == "" {
		*cfgPath = filepath.Join(*runDir, schema.FileConfigSnapshot)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}

	snapshots, err := replay.ReadSnapshots(filepath.Join(*runDir, schema.FileSnapshots))
	if err != nil {
		logger.Error("failed to read snapshots.csv", "error", err)
		os.Exit(1)
	}
	ticks, err := replay.ReadTrades(filepath.Join(*runDir, schema.FileTrades))
	if err != nil {
		logger.Error("failed to read trades.csv", "error", err)
		os.Exit(1)
	}

	// The sweep settles windows across the whole recorded tape, so the
	// store must never trim by age the way the online store does.
	trades := tradestore.New(math.MaxInt64/2, 0)
	for _, t := range ticks {
		trades.Push(t)
	}

	baseRunID := filepath.Base(*runDir)
	fillShares := ledger.FillShares{Liquid: cfg.Buckets.FillShareLiquidP25, Thin: cfg.Buckets.FillShareThinP25}

	scores := sweep.RunBrainSweep(baseRunID, snapshots, cfg.Brain.QReq, fillShares, schema.DumpSlippageAssumed, trades,
		cfg.Shadow.WindowStartMs, cfg.Shadow.WindowEndMs)

	if err := sweep.WriteBrainSweepScoresCSV(filepath.Join(*runDir, schema.FileBrainSweepScores), scores); err != nil {
		logger.Error("failed to write brain_sweep_scores.csv", "error", err)
		os.Exit(1)
	}

	best, found := sweep.SelectBestBrain(scores)
	if err := sweep.WriteBestBrainPatchTOML(filepath.Join(*runDir, schema.FileBestBrainPatch), best, found); err != nil {
		logger.Error("failed to write best_brain_patch.toml", "error", err)
		os.Exit(1)
	}

	logger.Info("brain sweep complete", "combinations", len(scores), "best_found", found)
}
