// Package schema holds every frozen, byte-stable output contract: CSV
// column headers, artifact file names, and the schema version stamp. These
// must never change shape without a version bump; downstream tools (Replay,
// Sweep, Report, Run-Comparator) all depend on exact column order.
package schema

import "path/filepath"

// Version is stamped into every shadow row and run_meta.json, and checked
// by every reader that consumes a prior run's output.
const Version = "razor_v1"

// Artifact file names, one per run directory (or sweep/replay subdirectory).
const (
	FileRunMeta              = "run_meta.json"
	FileConfigSnapshot       = "config.toml"
	FileSnapshots            = "snapshots.csv"
	FileTrades               = "trades.csv"
	FileShadowLog            = "shadow_log.csv"
	FileReportJSON           = "report.json"
	FileReportMD             = "report.md"
	FileSchemaVersion        = "schema_version.json"
	FileHealth               = "health.jsonl"
	FileSweepScores          = "sweep_scores.csv"
	FileBestPatch            = "best_patch.toml"
	FileSweepRecommendation  = "sweep_recommendation.json"
	FileBrainSweepScores     = "brain_sweep_scores.csv"
	FileBestBrainPatch       = "best_brain_patch.toml"
	FileDailyScores          = "daily_scores.csv"
	FileWalkForward          = "walk_forward.json"
	FileRunsSummary          = "runs_summary.csv"
	FileRunsSummaryMD        = "runs_summary.md"
	FileReplayShadowLog      = "replay_shadow_log.csv"
	FileReplayReportJSON     = "replay_report.json"
	FileReplayReportMD       = "replay_report.md"
)

// ShadowLogHeader is the frozen 38-column shadow_log.csv header. Column
// order must never change; add new facts as KEY=VALUE tokens inside notes
// instead of new columns.
var ShadowLogHeader = []string{
	"run_id", "schema_version", "signal_id",
	"signal_ts_unix_ms", "window_start_ms", "window_end_ms",
	"market_id", "strategy", "bucket", "worst_leg_token_id",
	"q_req", "legs_n", "q_set",
	"leg0_token_id", "leg0_p_limit", "leg0_best_bid", "leg0_v_mkt", "leg0_q_fill",
	"leg1_token_id", "leg1_p_limit", "leg1_best_bid", "leg1_v_mkt", "leg1_q_fill",
	"leg2_token_id", "leg2_p_limit", "leg2_best_bid", "leg2_v_mkt", "leg2_q_fill",
	"cost_set", "proceeds_set", "pnl_set", "pnl_left_total", "total_pnl",
	"q_fill_avg", "set_ratio", "fill_share_p25_used", "dump_slippage_assumed",
	"notes",
}

// SnapshotsHeader is the frozen 15-column snapshots.csv header.
var SnapshotsHeader = []string{
	"ts_ms", "market_id", "legs_n",
	"leg0_token_id", "leg0_best_bid", "leg0_best_ask", "leg0_depth3_usdc",
	"leg1_token_id", "leg1_best_bid", "leg1_best_ask", "leg1_depth3_usdc",
	"leg2_token_id", "leg2_best_bid", "leg2_best_ask", "leg2_depth3_usdc",
}

// TradesHeader is the frozen 8-column trades.csv header.
var TradesHeader = []string{
	"ts_ms", "market_id", "token_id", "price", "size", "trade_id",
	"ingest_ts_ms", "exchange_ts_ms",
}

// SweepScoresHeader is the frozen 13-column sweep_scores.csv header.
var SweepScoresHeader = []string{
	"run_id", "rows_total", "rows_ok", "rows_bad",
	"fill_share_liquid", "fill_share_thin", "dump_slippage_assumed",
	"set_ratio_threshold", "total_pnl_sum", "total_pnl_avg",
	"set_ratio_avg", "legging_rate", "worst_20_pnl_sum",
}

// BrainSweepScoresHeader is the frozen 12-column brain_sweep_scores.csv header.
var BrainSweepScoresHeader = []string{
	"base_run_id", "signals_total", "signals_ok", "signals_bad",
	"min_net_edge_bps", "risk_premium_bps", "signal_cooldown_ms",
	"total_pnl_sum", "total_pnl_avg", "avg_set_ratio", "legging_rate",
	"worst_20_pnl_sum",
}

// DailyScoresHeader is the frozen 8-column daily_scores.csv header.
var DailyScoresHeader = []string{
	"run_id", "day_start_unix_ms", "signals", "total_pnl_sum",
	"total_pnl_avg", "avg_set_ratio", "legging_rate", "worst_20_pnl_sum",
}

// RunsSummaryHeader is the frozen 24-column runs_summary.csv header.
var RunsSummaryHeader = []string{
	"run_id", "run_dir", "rows_total", "rows_ok", "rows_bad", "rows_schema_mismatch",
	"signals", "total_pnl_sum", "pnl_set_sum", "pnl_left_total_sum",
	"avg_set_ratio", "legging_rate",
	"liquid_signals", "liquid_pnl_sum", "liquid_avg_set_ratio",
	"thin_signals", "thin_pnl_sum", "thin_avg_set_ratio",
	"unknown_signals", "unknown_pnl_sum", "unknown_avg_set_ratio",
	"top_reason_1", "top_reason_1_count", "top_reason_2",
}

// VersionDoc is the schema_version.json document stamped into every run
// directory, so readers can reject artifacts from an incompatible build
// before parsing any CSV.
type VersionDoc struct {
	SchemaVersion string `json:"schema_version"`
}

// WriteVersionFile writes schema_version.json into runDir.
func WriteVersionFile(runDir string) error {
	return WriteJSONAtomic(filepath.Join(runDir, FileSchemaVersion), VersionDoc{SchemaVersion: Version})
}

// DayMs is the fixed 24-hour bucketing interval used by the walk-forward
// splitter to partition shadow rows into days.
const DayMs int64 = 86_400_000

// SetRatioThreshold is the fixed legging-failure threshold used by the
// Run-Comparator and Walk-Forward Splitter (independent of the Report
// Generator's configurable min_avg_set_ratio).
const SetRatioThreshold = 0.85

// DumpSlippageAssumed is the fixed default dump-slippage fraction applied to
// stranded leftover leg inventory in the baseline (non-swept) ledger.
const DumpSlippageAssumed = 0.05
