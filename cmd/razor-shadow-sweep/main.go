// Command razor-shadow-sweep grid-searches Shadow Ledger settlement
// assumptions (fill share per bucket, dump slippage) against a recorded
// shadow log, writing sweep_scores.csv, best_patch.toml, and
// sweep_recommendation.json into the run directory.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"razor/internal/schema"
	"razor/internal/sweep"
)

func main() {
	runDir := flag.String("run-dir", "", "run directory containing shadow_log.csv")
	runID := flag.String("run-id", "", "run id to filter shadow_log.csv rows by (defaults to all rows)")
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
		rows = filterByRunID(rows, *runID)
	}

	grid := sweep.DefaultShadowGrid()
	scores := sweep.RunShadowSweep(sweepRunID(*runID, rows), rows, grid)

	if err := sweep.WriteSweepScoresCSV(filepath.Join(*runDir, schema.FileSweepScores), scores); err != nil {
		logger.Error("failed to write sweep_scores.csv", "error", err)
		os.Exit(1)
	}

	best, found := sweep.SelectBest(scores)
	if err := sweep.WriteBestPatchTOML(filepath.Join(*runDir, schema.FileBestPatch), best, found); err != nil {
		logger.Error("failed to write best_patch.toml", "error", err)
		os.Exit(1)
	}
	if err := sweep.WriteSweepRecommendationJSON(filepath.Join(*runDir, schema.FileSweepRecommendation), scores); err != nil {
		logger.Error("failed to write sweep_recommendation.json", "error", err)
		os.Exit(1)
	}

	logger.Info("shadow sweep complete", "combinations", len(scores), "best_found", found)
}

func filterByRunID(rows []sweep.ShadowLogRow, runID string) []sweep.ShadowLogRow {
	out := rows[:0]
	for _, r := range rows {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out
}

func sweepRunID(flagRunID string, rows []sweep.ShadowLogRow) string {
	if flagRunID != "" {
		return flagRunID
	}
	if len(rows) > 0 {
		return rows[0].RunID
	}
	return "unknown"
}
