package ledger

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"razor/internal/domain"
	"razor/internal/health"
	"razor/internal/schema"
	"razor/internal/tradestore"
)

const tickInterval = 50 * time.Millisecond

// FillShares selects the assumed p25 fill share per bucket.
type FillShares struct {
	Liquid float64
	Thin   float64
}

// Ledger holds admitted signals until their settlement window closes, then
// settles them against the trade store and appends a ShadowRow.
type Ledger struct {
	runID               string
	windowStartMs       int64
	windowEndMs         int64
	fillShares          FillShares
	dumpSlippageAssumed float64
	trades              *tradestore.Store
	counters            *health.Counters
	outPath             string

	pending []domain.Signal
}

// New creates a Shadow Ledger writing to outPath (shadow_log.csv).
func New(runID string, windowStartMs, windowEndMs int64, fillShares FillShares, dumpSlippageAssumed float64, trades *tradestore.Store, counters *health.Counters, outPath string) *Ledger {
	return &Ledger{
		runID:               runID,
		windowStartMs:       windowStartMs,
		windowEndMs:         windowEndMs,
		fillShares:          fillShares,
		dumpSlippageAssumed: dumpSlippageAssumed,
		trades:              trades,
		counters:            counters,
		outPath:             outPath,
	}
}

// Run drains admitted signals from in and sweeps pending signals for
// settlement every tick until ctx is done.
func (l *Ledger) Run(ctx context.Context, in <-chan domain.Signal) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-in:
			if !ok {
				return
			}
			l.pending = append(l.pending, sig)
			l.sweep(time.Now().UnixMilli())
		case <-ticker.C:
			l.sweep(time.Now().UnixMilli())
		}
	}
}

// sweep settles every pending signal whose window has closed as of nowMs.
func (l *Ledger) sweep(nowMs int64) {
	remaining := l.pending[:0]
	for _, sig := range l.pending {
		if nowMs < sig.SignalTsMs+l.windowEndMs {
			remaining = append(remaining, sig)
			continue
		}
		row := l.Settle(sig)
		if l.counters != nil {
			l.counters.ShadowRowsWritten.Add(1)
		}
		if err := schema.AppendCSVRow(l.outPath, schema.ShadowLogHeader, RowToRecord(row)); err != nil {
			slog.Error("shadow ledger: append shadow_log.csv failed", "signal_id", row.SignalID, "error", err)
		}
	}
	l.pending = remaining
}

// Settle produces a ShadowRow for one signal using the current trade store
// contents. It is pure given the trade store's state, and is reused
// verbatim by the Replay Engine against a recorded tape.
func (l *Ledger) Settle(sig domain.Signal) domain.ShadowRow {
	fillShare := l.fillShares.Thin
	if sig.Bucket == "liquid" {
		fillShare = l.fillShares.Liquid
	}

	windowStart := sig.SignalTsMs + l.windowStartMs
	windowEnd := sig.SignalTsMs + l.windowEndMs

	legs := make([]RecomputeLeg, len(sig.Legs))
	for i, leg := range sig.Legs {
		vMkt := 0.0
		if l.trades != nil {
			vMkt = l.trades.VolumeAtOrBetter(sig.MarketID, leg.TokenID, windowStart, windowEnd, leg.LimitPrice)
		}
		legs[i] = RecomputeLeg{PLimit: leg.LimitPrice, BestBid: leg.BestBidAtSignal, VMkt: vMkt}
	}

	reasons := append([]string{}, sig.Reasons...)
	var diags []string

	if !(sig.QReq > 0) || math.IsInf(sig.QReq, 0) {
		reasons = append(reasons, "INVALID_QTY")
	}
	invalidPrice, missingBook := false, false
	for _, leg := range sig.Legs {
		if !(leg.LimitPrice > 0) || math.IsInf(leg.LimitPrice, 0) || math.IsNaN(leg.LimitPrice) {
			invalidPrice = true
		}
		if leg.BestBidAtSignal <= 0 && leg.BestAskAtSignal <= 0 {
			missingBook = true
		}
	}
	if invalidPrice {
		reasons = append(reasons, "INVALID_PRICE")
	}
	if missingBook {
		reasons = append(reasons, "MISSING_BOOK")
	}
	if fillShare <= 0 {
		reasons = append(reasons, "FILL_SHARE_P25_ZERO")
	}
	if len(sig.Legs) == 2 {
		reasons = append(reasons, "LEGS_PADDED")
	}

	res := Recompute(sig.QReq, legs, fillShare, l.dumpSlippageAssumed)
	res = sanitizeResult(res, &reasons)

	missingBid := false
	for i, leg := range sig.Legs {
		if i < len(res.QFill) && res.QFill[i]-res.QSet > 0 && leg.BestBidAtSignal <= 0 {
			missingBid = true
		}
	}
	if missingBid {
		reasons = append(reasons, "MISSING_BID")
	}

	anyVolume := false
	for _, leg := range legs {
		if leg.VMkt > 0 {
			anyVolume = true
			break
		}
	}

	var stats tradestore.WindowStats
	if l.trades != nil {
		stats = l.trades.WindowStats(sig.MarketID, windowStart, windowEnd)
	}
	if stats.TradesInWindow == 0 {
		reasons = append(reasons, "WINDOW_EMPTY", "NO_TRADES")
	} else if !anyVolume {
		reasons = append(reasons, "NO_TRADES")
	}
	if stats.TradesInWindow > 0 && stats.MaxGapMs > (windowEnd-windowStart)/2 {
		reasons = append(reasons, "WINDOW_DATA_GAP")
		diags = append(diags, "MAX_GAP_MS="+strconv.FormatInt(stats.MaxGapMs, 10))
	}
	if stats.DedupHits > 0 {
		reasons = append(reasons, "DEDUP_HIT")
		diags = append(diags, "DEDUP_N="+strconv.Itoa(stats.DedupHits))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "OK")
	}
	reasons = append(reasons, diags...)

	row := domain.ShadowRow{
		RunID:            l.runID,
		SchemaVersion:    schema.Version,
		SignalID:         sig.SignalID,
		SignalTsUnixMs:   sig.SignalTsMs,
		WindowStartMs:    l.windowStartMs,
		WindowEndMs:      l.windowEndMs,
		MarketID:         sig.MarketID,
		Strategy:         sig.Strategy,
		Bucket:           sig.Bucket,
		QReq:             sig.QReq,
		LegsN:            len(sig.Legs),
		QSet:             res.QSet,
		CostSet:          res.CostSet,
		ProceedsSet:      res.ProceedsSet,
		PnlSet:           res.PnlSet,
		PnlLeftTotal:     res.PnlLeftTotal,
		TotalPnl:         res.TotalPnl,
		QFillAvg:         res.QFillAvg,
		SetRatio:         res.SetRatio,
		FillSharePUsed:   fillShare,
		DumpSlippageUsed: l.dumpSlippageAssumed,
		Notes:            strings.Join(reasons, "|"),
	}
	if sig.WorstLegIndex >= 0 && sig.WorstLegIndex < len(sig.Legs) {
		row.WorstLegTokenID = sig.Legs[sig.WorstLegIndex].TokenID
	}
	for i := 0; i < len(legs) && i < 3; i++ {
		row.Legs[i] = domain.LegSettlement{
			TokenID: sig.Legs[i].TokenID,
			PLimit:  legs[i].PLimit,
			BestBid: legs[i].BestBid,
			VMkt:    legs[i].VMkt,
			QFill:   res.QFill[i],
		}
	}
	return row
}

// sanitizeResult collapses non-finite settlement outputs to zero rather than
// letting a poisoned intermediate leak into the shadow log, tagging the row
// with INVALID_PRICE if it was not already flagged.
func sanitizeResult(res RecomputeResult, reasons *[]string) RecomputeResult {
	bad := false
	clean := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			bad = true
			return 0
		}
		return v
	}
	res.QSet = clean(res.QSet)
	res.CostSet = clean(res.CostSet)
	res.ProceedsSet = clean(res.ProceedsSet)
	res.PnlSet = clean(res.PnlSet)
	res.PnlLeftTotal = clean(res.PnlLeftTotal)
	res.TotalPnl = clean(res.TotalPnl)
	res.QFillAvg = clean(res.QFillAvg)
	res.SetRatio = clean(res.SetRatio)
	for i := range res.QFill {
		res.QFill[i] = clean(res.QFill[i])
	}
	if bad && !contains(*reasons, "INVALID_PRICE") {
		*reasons = append(*reasons, "INVALID_PRICE")
	}
	return res
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// RowToRecord serializes a ShadowRow into a CSV record matching
// schema.ShadowLogHeader's column order. Exported so the Replay Engine and
// Sweep Engines can write rows through the same shared formatting.
func RowToRecord(row domain.ShadowRow) []string {
	f := strconv.FormatFloat
	i := strconv.FormatInt

	rec := []string{
		row.RunID, row.SchemaVersion, strconv.FormatUint(row.SignalID, 10),
		i(row.SignalTsUnixMs, 10), i(row.WindowStartMs, 10), i(row.WindowEndMs, 10),
		row.MarketID, string(row.Strategy), row.Bucket, row.WorstLegTokenID,
		f(row.QReq, 'f', -1, 64), strconv.Itoa(row.LegsN), f(row.QSet, 'f', -1, 64),
	}
	for _, leg := range row.Legs {
		rec = append(rec, leg.TokenID, f(leg.PLimit, 'f', -1, 64), f(leg.BestBid, 'f', -1, 64), f(leg.VMkt, 'f', -1, 64), f(leg.QFill, 'f', -1, 64))
	}
	rec = append(rec,
		f(row.CostSet, 'f', -1, 64), f(row.ProceedsSet, 'f', -1, 64), f(row.PnlSet, 'f', -1, 64),
		f(row.PnlLeftTotal, 'f', -1, 64), f(row.TotalPnl, 'f', -1, 64), f(row.QFillAvg, 'f', -1, 64),
		f(row.SetRatio, 'f', -1, 64), f(row.FillSharePUsed, 'f', -1, 64), f(row.DumpSlippageUsed, 'f', -1, 64),
		row.Notes,
	)
	return rec
}
