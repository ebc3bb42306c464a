// Package health tracks hot counters for the online pipeline and flushes
// them periodically to health.jsonl, giving every run an externally
// observable heartbeat and throughput record.
package health

import (
	"sync/atomic"
	"time"

	"razor/internal/schema"
)

// Counters is a set of process-wide atomic counters. Zero value is ready to
// use.
type Counters struct {
	SnapshotsSeen        atomic.Int64
	SignalsAdmitted      atomic.Int64
	SignalsSuppressed    atomic.Int64
	SignalsDropped       atomic.Int64
	TradesPushed         atomic.Int64
	TradesDuplicated     atomic.Int64
	TradesRejected       atomic.Int64
	ShadowRowsWritten    atomic.Int64
	OutOfOrderWarnings   atomic.Int64
}

// Snapshot is the JSON-serializable point-in-time view of Counters, written
// once per flush tick to health.jsonl.
type Snapshot struct {
	TsUnixMs           int64 `json:"ts_unix_ms"`
	SnapshotsSeen      int64 `json:"snapshots_seen"`
	SignalsAdmitted    int64 `json:"signals_admitted"`
	SignalsSuppressed  int64 `json:"signals_suppressed"`
	SignalsDropped     int64 `json:"signals_dropped"`
	TradesPushed       int64 `json:"trades_pushed"`
	TradesDuplicated   int64 `json:"trades_duplicated"`
	TradesRejected     int64 `json:"trades_rejected"`
	ShadowRowsWritten  int64 `json:"shadow_rows_written"`
	OutOfOrderWarnings int64 `json:"out_of_order_warnings"`
}

// Snapshot captures the current counter values.
func (c *Counters) Snapshot(nowMs int64) Snapshot {
	return Snapshot{
		TsUnixMs:           nowMs,
		SnapshotsSeen:      c.SnapshotsSeen.Load(),
		SignalsAdmitted:    c.SignalsAdmitted.Load(),
		SignalsSuppressed:  c.SignalsSuppressed.Load(),
		SignalsDropped:     c.SignalsDropped.Load(),
		TradesPushed:       c.TradesPushed.Load(),
		TradesDuplicated:   c.TradesDuplicated.Load(),
		TradesRejected:     c.TradesRejected.Load(),
		ShadowRowsWritten:  c.ShadowRowsWritten.Load(),
		OutOfOrderWarnings: c.OutOfOrderWarnings.Load(),
	}
}

// Writer appends JSON-line snapshots of Counters to a health.jsonl file, one
// line per AppendLine call. It runs no loop of its own: the caller drives it
// (the engine calls AppendLine on each Interval tick).
type Writer struct {
	Counters *Counters
	Path     string
	Interval time.Duration
}

// AppendLine writes one snapshot as a JSON line, appending to Path.
func (w *Writer) AppendLine(snap Snapshot) error {
	return appendJSONLine(w.Path, snap)
}

func appendJSONLine(path string, v Snapshot) error {
	return schema.AppendJSONLine(path, v)
}
