// Package buckets classifies a market snapshot as Liquid or Thin based on
// its worst leg's spread and depth. The classification feeds both the
// Signal Engine's bucket tag and the Shadow Ledger's fill-share selection.
package buckets

import (
	"math"

	"razor/internal/bps"
)

// Bucket is the liquidity classification of a market snapshot.
type Bucket string

const (
	Liquid Bucket = "liquid"
	Thin   Bucket = "thin"
)

const (
	liquidSpreadBpsMax   = 20
	liquidDepthUSDCMin   = 500
	depthImplausibleCeil = 10_000_000
)

// LegBook is the minimal leg shape Classify needs from a snapshot leg.
type LegBook struct {
	BestBid    float64
	BestAsk    float64
	Depth3USDC float64
}

// Result carries the classification plus the diagnostics needed by callers
// that attach reason codes to a signal or shadow row.
type Result struct {
	Bucket           Bucket
	WorstLegIndex    int
	WorstSpreadBps   bps.Bps
	WorstDepth3USDC  float64
	IsDepth3Degraded bool
	NaNReason        string // "" | "BUCKET_LIQUID_NAN" | "BUCKET_THIN_NAN"
}

// Classify finds the worst leg (lowest sanitized depth, ties broken by
// lowest leg index) and derives the bucket from that leg's spread and
// depth. A degraded or invalid book is reported as having zero depth.
func Classify(legs []LegBook) Result {
	worstIdx := 0
	worstDepth := math.Inf(1)
	for i, leg := range legs {
		d := sanitizeDepth(leg.Depth3USDC)
		if d < worstDepth {
			worstDepth = d
			worstIdx = i
		}
	}

	worst := legs[worstIdx]
	degraded := isDegraded(worst.Depth3USDC)
	depth := sanitizeDepth(worst.Depth3USDC)
	spreadBps, spreadValid := spreadBps(worst.BestBid, worst.BestAsk)

	bucket := Thin
	nanReason := ""
	if !spreadValid || degraded {
		if degraded {
			nanReason = "BUCKET_THIN_NAN"
		}
	} else if spreadBps < liquidSpreadBpsMax && depth > liquidDepthUSDCMin {
		bucket = Liquid
	}
	if degraded && bucket == Liquid {
		nanReason = "BUCKET_LIQUID_NAN"
	}

	return Result{
		Bucket:           bucket,
		WorstLegIndex:    worstIdx,
		WorstSpreadBps:   spreadBps,
		WorstDepth3USDC:  depth,
		IsDepth3Degraded: degraded,
		NaNReason:        nanReason,
	}
}

func isDegraded(depth float64) bool {
	return math.IsNaN(depth) || depth < 0 || depth > depthImplausibleCeil
}

func sanitizeDepth(depth float64) float64 {
	if isDegraded(depth) {
		return 0
	}
	return depth
}

// spreadBps returns the ceiling-rounded spread in basis points of mid price.
// The second return is false when the book is not usable (non-positive
// prices, crossed book, or non-finite mid).
func spreadBps(bid, ask float64) (bps.Bps, bool) {
	if bid <= 0 || ask <= 0 || ask < bid {
		return 0, false
	}
	mid := (ask + bid) / 2
	if mid <= 0 || math.IsNaN(mid) || math.IsInf(mid, 0) {
		return 0, false
	}
	spread := (ask - bid) / mid * 10000
	return bps.Bps(int32(math.Ceil(spread))), true
}
