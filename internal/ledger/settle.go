// Package ledger implements the Shadow Ledger: deferred windowed settlement
// of admitted signals against the recorded trade tape, using a fixed
// fill-share and dump-slippage accounting model. Recompute is the single
// settlement formula shared by the online ledger, the Replay Engine, and
// both Sweep Engines, so every consumer scores signals identically.
package ledger

import (
	"math"

	"razor/internal/bps"
)

// RecomputeLeg is one leg's inputs to the settlement formula: the price it
// would be bought at, the reference bid used for leftover-inventory exit
// pricing, and the realized in-window market volume available at or better
// than the limit.
type RecomputeLeg struct {
	PLimit  float64
	BestBid float64
	VMkt    float64
}

// RecomputeResult is the aggregate settlement outcome for one signal.
type RecomputeResult struct {
	QFill        []float64
	QSet         float64
	CostSet      float64
	ProceedsSet  float64
	PnlSet       float64
	PnlLeftTotal float64
	TotalPnl     float64
	QFillAvg     float64
	SetRatio     float64
}

// Recompute settles one signal's legs under a given fill share and dump
// slippage assumption. qReq is the requested quantity per leg.
//
// Each leg fills min(qReq, vMkt*fillShareUsed). The tradeable "set" quantity
// is the minimum fill across legs (capped at qReq); it is merged/redeemed at
// FeeMerge and costed at FeePoly per leg. Any leftover filled-but-unset
// inventory per leg is assumed dumped at its best bid discounted by
// dumpSlippageAssumed, net of the cost already paid to acquire it.
func Recompute(qReq float64, legs []RecomputeLeg, fillShareUsed, dumpSlippageAssumed float64) RecomputeResult {
	n := len(legs)
	qFill := make([]float64, n)
	qSet := qReq
	for i, leg := range legs {
		f := leg.VMkt * fillShareUsed
		if f > qReq {
			f = qReq
		}
		if f < 0 || math.IsNaN(f) {
			f = 0
		}
		qFill[i] = f
		if f < qSet {
			qSet = f
		}
	}
	if qSet < 0 {
		qSet = 0
	}

	costSetPerUnit := 0.0
	for _, leg := range legs {
		costSetPerUnit += bps.FeePoly.ApplyCost(leg.PLimit)
	}
	costSet := qSet * costSetPerUnit
	proceedsSet := qSet * bps.FeeMerge.ApplyProceeds(1.0)
	pnlSet := proceedsSet - costSet

	pnlLeftTotal := 0.0
	for i, leg := range legs {
		qLeft := qFill[i] - qSet
		if qLeft <= 0 {
			continue
		}
		exit := leg.BestBid
		if exit < 0 {
			exit = 0
		}
		exit = exit * (1 - dumpSlippageAssumed)
		pnlLeftTotal += qLeft * (bps.FeePoly.ApplyProceeds(exit) - bps.FeePoly.ApplyCost(leg.PLimit))
	}

	totalPnl := pnlSet + pnlLeftTotal

	qFillAvg := 0.0
	for _, f := range qFill {
		qFillAvg += f
	}
	if n > 0 {
		qFillAvg /= float64(n)
	}
	setRatio := 0.0
	if qFillAvg > 0 {
		setRatio = qSet / qFillAvg
	}

	return RecomputeResult{
		QFill:        qFill,
		QSet:         qSet,
		CostSet:      costSet,
		ProceedsSet:  proceedsSet,
		PnlSet:       pnlSet,
		PnlLeftTotal: pnlLeftTotal,
		TotalPnl:     totalPnl,
		QFillAvg:     qFillAvg,
		SetRatio:     setRatio,
	}
}
