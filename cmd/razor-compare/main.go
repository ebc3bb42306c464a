// Command razor-compare discovers every run directory under a data root,
// summarizes each run's shadow log, and writes a combined runs_summary.csv
// and runs_summary.md comparing them side by side.
package main

import (
	"flag"
	"log/slog"
	"os"

	"razor/internal/runcompare"
)

func main() {
	dataDir := flag.String("data-dir", "data", "root directory containing run_* subdirectories")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	runDirs, err := runcompare.DiscoverRunDirs(*dataDir)
	if err != nil {
		logger.Error("failed to discover run directories", "error", err)
		os.Exit(1)
	}
	if len(runDirs) == 0 {
		logger.Warn("no run directories with a shadow_log.csv found", "data_dir", *dataDir)
	}

	summaries := make([]runcompare.RunSummary, 0, len(runDirs))
	for _, dir := range runDirs {
		s, err := runcompare.SummarizeRunDir(dir)
		if err != nil {
			logger.Error("failed to summarize run", "run_dir", dir, "error", err)
			continue
		}
		summaries = append(summaries, s)
	}

	if _, err := runcompare.WriteRunsSummaryCSV(*dataDir, summaries); err != nil {
		logger.Error("failed to write runs_summary.csv", "error", err)
		os.Exit(1)
	}
	if _, err := runcompare.WriteRunsSummaryMD(*dataDir, summaries); err != nil {
		logger.Error("failed to write runs_summary.md", "error", err)
		os.Exit(1)
	}

	logger.Info("run compare complete", "runs", len(summaries))
}
