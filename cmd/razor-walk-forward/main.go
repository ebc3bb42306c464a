// Command razor-walk-forward partitions a recorded shadow log into UTC days
// and walks forward through them, training Shadow Sweep parameters on each
// prefix and scoring the next day, to estimate how much a chosen parameter
// set overfits its training window.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"razor/internal/schema"
	"razor/internal/sweep"
	"razor/internal/walkforward"
)

func main() {
	runDir := flag.String("run-dir", "", "run directory containing shadow_log.csv")
	runID := flag.String("run-id", "", "run id to filter shadow_log.csv rows by")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if *runDir == "" {
		logger.Error("-run-dir is required")
		os.Exit(1)
	}

	rows, err := sweep.ReadShadowLog(filepath.Join(*runDir, schema.FileShadowLog))
	if err != nil {
		logger.Error("failed to read shadow_log.csv", "error", err)
		os.Exit(1)
	}
	if *runID != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if r.RunID == *runID {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	effectiveRunID := *runID
	if effectiveRunID == "" && len(rows) > 0 {
		effectiveRunID = rows[0].RunID
	}

	dailyScores, report := walkforward.Run(effectiveRunID, rows, func(r sweep.ShadowLogRow) int64 {
		return walkforward.DayStartMs(r.SignalTsUnixMs)
	})

	if err := walkforward.WriteDailyScoresCSV(filepath.Join(*runDir, schema.FileDailyScores), dailyScores); err != nil {
		logger.Error("failed to write daily_scores.csv", "error", err)
		os.Exit(1)
	}
	if err := walkforward.WriteWalkForwardJSON(filepath.Join(*runDir, schema.FileWalkForward), report); err != nil {
		logger.Error("failed to write walk_forward.json", "error", err)
		os.Exit(1)
	}

	logger.Info("walk-forward complete", "days", len(dailyScores), "steps", len(report.Steps), "overfit_risk_score", report.OverfitRiskScore)
}
