// Package sweep implements the Shadow Sweep and Brain Sweep grid searches:
// offline parameter exploration over a recorded shadow log (or recorded
// snapshots/trades, for the brain grid), scored with the same Recompute
// formula the online ledger uses, with a deterministic best-patch selection
// rule.
package sweep

import (
	"strconv"
	"strings"

	"razor/internal/ledger"
	"razor/internal/schema"
)

// ShadowLogRow is one parsed shadow_log.csv record, carrying just the fields
// the sweep math needs to recompute settlement under alternate assumptions.
type ShadowLogRow struct {
	RunID          string
	SignalTsUnixMs int64
	MarketID       string
	Bucket         string
	QReq           float64
	LegsN          int
	Legs           []ledger.RecomputeLeg
	TotalPnl       float64
	SetRatio       float64
	FillShareUsed  float64
	DumpSlippage   float64
	Notes          string
}

// ReadShadowLog reads and strictly validates a shadow_log.csv file.
func ReadShadowLog(path string) ([]ShadowLogRow, error) {
	records, err := schema.ReadCSVStrict(path, schema.ShadowLogHeader)
	if err != nil {
		return nil, err
	}
	out := make([]ShadowLogRow, 0, len(records))
	for _, rec := range records {
		out = append(out, parseShadowLogRow(rec))
	}
	return out, nil
}

func parseShadowLogRow(rec []string) ShadowLogRow {
	signalTs, _ := strconv.ParseInt(rec[3], 10, 64)
	qReq, _ := strconv.ParseFloat(rec[10], 64)
	legsN, _ := strconv.Atoi(rec[11])
	totalPnl, _ := strconv.ParseFloat(rec[32], 64)
	setRatio, _ := strconv.ParseFloat(rec[34], 64)
	fillShare, _ := strconv.ParseFloat(rec[35], 64)
	dumpSlippage, _ := strconv.ParseFloat(rec[36], 64)

	legs := make([]ledger.RecomputeLeg, 0, legsN)
	for i := 0; i < legsN && i < 3; i++ {
		base := 13 + i*5
		pLimit, _ := strconv.ParseFloat(rec[base+1], 64)
		bestBid, _ := strconv.ParseFloat(rec[base+2], 64)
		vMkt, _ := strconv.ParseFloat(rec[base+3], 64)
		legs = append(legs, ledger.RecomputeLeg{PLimit: pLimit, BestBid: bestBid, VMkt: vMkt})
	}

	return ShadowLogRow{
		RunID:          rec[0],
		SignalTsUnixMs: signalTs,
		MarketID:       rec[6],
		Bucket:         rec[8],
		QReq:           qReq,
		LegsN:          legsN,
		Legs:           legs,
		TotalPnl:       totalPnl,
		SetRatio:       setRatio,
		FillShareUsed:  fillShare,
		DumpSlippage:   dumpSlippage,
		Notes:          rec[37],
	}
}

// ParseNotesReasons splits a notes field into its reason-code tokens:
// everything after the first ';' is free text and discarded, and KEY=VALUE
// diagnostic tokens are dropped.
func ParseNotesReasons(notes string) []string {
	if i := strings.IndexByte(notes, ';'); i >= 0 {
		notes = notes[:i]
	}
	parts := strings.Split(notes, "|")
	reasons := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || strings.Contains(p, "=") {
			continue
		}
		reasons = append(reasons, p)
	}
	return reasons
}
