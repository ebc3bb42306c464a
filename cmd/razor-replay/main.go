// Command razor-replay deterministically regenerates a shadow log from a
// recorded run's snapshots.csv/trades.csv tape, then invokes the Report
// Generator against the freshly written replay shadow log so a replay's
// verdict is always computed from its own output rather than the original
// run's.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"razor/internal/config"
	"razor/internal/replay"
	"razor/internal/report"
	"razor/internal/schema"
	"razor/internal/sweep"
)

func main() {
	runDir := flag.String("run-dir", "", "run directory containing snapshots.csv and trades.csv")
	replayRunID := flag.String("replay-run-id", "", "run id to stamp onto replayed signals (defaults to <original>_replay)")
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
	if *replayRunID == "" {
		*replayRunID = filepath.Base(*runDir) + "_replay"
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}

	result, err := replay.Run(*runDir, *replayRunID, cfg)
	if err != nil {
		logger.Error("replay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("replay complete", "rows_written", result.RowsWritten, "output_path", result.OutputPath)

	if err := runReport(result.OutputDir, result.OutputPath, *replayRunID, cfg); err != nil {
		logger.Error("report generation on replay output failed", "error", err)
		os.Exit(1)
	}
}

func runReport(outDir, shadowLogPath, runID string, cfg *config.Config) error {
	records, err := schema.ReadCSVStrict(shadowLogPath, schema.ShadowLogHeader)
	if err != nil {
		return fmt.Errorf("read %s: %w", shadowLogPath, err)
	}

	thresholds := report.Thresholds{MinTotalShadowPnL: cfg.Report.MinTotalShadowPnL, MinAvgSetRatio: cfg.Report.MinAvgSetRatio}
	rpt := report.Compute(runID, records, thresholds)

	if rows, err := sweep.ReadShadowLog(shadowLogPath); err == nil {
		report.AttachStress(&rpt, runID, rows)
	}

	if err := report.WriteJSON(filepath.Join(outDir, schema.FileReplayReportJSON), rpt); err != nil {
		return err
	}
	return report.WriteMarkdown(filepath.Join(outDir, schema.FileReplayReportMD), rpt)
}
