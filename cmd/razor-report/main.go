// Command razor-report computes the GO/NO-GO verdict for a run: totals,
// bucket and strategy splits, the worst 20 signals, and a stress summary
// under harsher settlement assumptions, writing report.json and report.md.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"razor/internal/config"
	"razor/internal/report"
	"razor/internal/schema"
	"razor/internal/sweep"
)

func main() {
	runDir := flag.String("run-dir", "", "run directory containing shadow_log.csv")
	runID := flag.String("run-id", "", "run id to filter shadow_log.csv rows by (defaults to <run-dir>'s base name)")
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
	if *runID == "" {
		*runID = filepath.Base(*runDir)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err, "path", *cfgPath)
		os.Exit(1)
	}

	shadowLogPath := filepath.Join(*runDir, schema.FileShadowLog)
	records, err := schema.ReadCSVStrict(shadowLogPath, schema.ShadowLogHeader)
	if err != nil {
		logger.Error("failed to read shadow_log.csv", "error", err)
		os.Exit(1)
	}

	thresholds := report.Thresholds{MinTotalShadowPnL: cfg.Report.MinTotalShadowPnL, MinAvgSetRatio: cfg.Report.MinAvgSetRatio}
	rpt := report.Compute(*runID, records, thresholds)

	if rows, err := sweep.ReadShadowLog(shadowLogPath); err != nil {
		logger.Warn("stress summary skipped: could not re-read shadow log rows", "error", err)
	} else {
		report.AttachStress(&rpt, *runID, rows)
	}

	if err := report.WriteJSON(filepath.Join(*runDir, schema.FileReportJSON), rpt); err != nil {
		logger.Error("failed to write report.json", "error", err)
		os.Exit(1)
	}
	if err := report.WriteMarkdown(filepath.Join(*runDir, schema.FileReportMD), rpt); err != nil {
		logger.Error("failed to write report.md", "error", err)
		os.Exit(1)
	}

	logger.Info("report complete", "go", rpt.Verdict.Go, "signals", rpt.Totals.Signals, "total_pnl_sum", rpt.Totals.TotalPnlSum)
}
