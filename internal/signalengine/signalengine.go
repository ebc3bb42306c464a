// Package signalengine evaluates market snapshots for arbitrage edge,
// applies the min-net-edge gate and cooldown-based dedup, and emits
// admitted signals onto a bounded queue via a non-blocking send.
package signalengine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"razor/internal/bps"
	"razor/internal/buckets"
	"razor/internal/domain"
	"razor/internal/health"
)

const queueCapacity = 10000

// Params are the tunable thresholds the Signal Engine gates on. They are a
// narrow projection of config.BrainConfig so this package never imports
// internal/config.
type Params struct {
	RiskPremiumBps   bps.Bps
	MinNetEdgeBps    bps.Bps
	QReq             float64
	SignalCooldownMs int64
}

type dedupKey struct {
	marketID       string
	strategy       domain.Strategy
	roundedCostBps bps.Bps
}

// Engine consumes MarketSnapshot values and produces admitted Signals.
type Engine struct {
	runID    string
	params   Params
	counters *health.Counters
	legCount map[string]int // declared leg count per market, for the drop-on-mismatch check

	out chan domain.Signal

	mu       sync.Mutex
	lastSeen map[dedupKey]int64
	nextID   uint64
}

// New creates a Signal Engine for the given run. legCount declares the
// expected number of legs per market id; snapshots with a mismatched leg
// count are dropped as a defense-in-depth check (the feed client is the
// primary enforcement point).
func New(runID string, params Params, legCount map[string]int, counters *health.Counters) *Engine {
	return &Engine{
		runID:    runID,
		params:   params,
		counters: counters,
		legCount: legCount,
		out:      make(chan domain.Signal, queueCapacity),
		lastSeen: make(map[dedupKey]int64),
		nextID:   1,
	}
}

// Out is the channel admitted signals are published on.
func (e *Engine) Out() <-chan domain.Signal {
	return e.out
}

// Run observes snapshots from in until ctx is done or in is closed.
func (e *Engine) Run(ctx context.Context, in <-chan domain.MarketSnapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-in:
			if !ok {
				return
			}
			e.counters.SnapshotsSeen.Add(1)
			e.onSnapshot(snap, nowMs())
		}
	}
}

// OnSnapshotAt evaluates one snapshot using a caller-supplied timestamp,
// used by the Replay Engine to stamp signals from the snapshot's own ts_ms
// instead of wallclock time, making replay fully deterministic.
func (e *Engine) OnSnapshotAt(snap domain.MarketSnapshot, signalTsMs int64) {
	e.onSnapshot(snap, signalTsMs)
}

// onSnapshot evaluates one snapshot using a caller-supplied wallclock
// timestamp, so tests and the offline replay path can drive it
// deterministically without racing time.Now().
func (e *Engine) onSnapshot(snap domain.MarketSnapshot, signalTsMs int64) {
	if want, ok := e.legCount[snap.MarketID]; ok && want != len(snap.Legs) {
		return
	}
	strategy, ok := domain.StrategyFor(len(snap.Legs))
	if !ok {
		return
	}

	legBooks := make([]buckets.LegBook, len(snap.Legs))
	sumAsk := 0.0
	for i, leg := range snap.Legs {
		legBooks[i] = buckets.LegBook{BestBid: leg.BestBid, BestAsk: leg.BestAsk, Depth3USDC: leg.AskDepth3USDC}
		sumAsk += leg.BestAsk
	}
	if math.IsNaN(sumAsk) || math.IsInf(sumAsk, 0) || sumAsk < 0 {
		return
	}

	cls := buckets.Classify(legBooks)

	rawCostBps := bps.FromPriceCost(sumAsk)
	rawEdgeBps := bps.Bps(10000) - rawCostBps
	expectedNetBps := rawEdgeBps - bps.FeePoly - bps.FeeMerge - e.params.RiskPremiumBps

	if expectedNetBps < e.params.MinNetEdgeBps {
		return
	}

	key := dedupKey{marketID: snap.MarketID, strategy: strategy, roundedCostBps: rawCostBps.Quantize2()}

	e.mu.Lock()
	if last, seen := e.lastSeen[key]; seen && signalTsMs-last < e.params.SignalCooldownMs {
		e.mu.Unlock()
		e.counters.SignalsSuppressed.Add(1)
		return
	}
	e.lastSeen[key] = signalTsMs
	id := e.nextID
	e.nextID++
	e.mu.Unlock()

	legs := make([]domain.Leg, len(snap.Legs))
	for i, leg := range snap.Legs {
		legs[i] = domain.Leg{
			LegIndex:        i,
			TokenID:         leg.TokenID,
			Side:            domain.Buy,
			LimitPrice:      leg.BestAsk,
			Qty:             e.params.QReq,
			BestBidAtSignal: leg.BestBid,
			BestAskAtSignal: leg.BestAsk,
		}
	}

	var reasons []string
	if cls.NaNReason != "" {
		reasons = append(reasons, cls.NaNReason)
	}

	sig := domain.Signal{
		RunID:           e.runID,
		SignalID:        id,
		SignalTsMs:      signalTsMs,
		MarketID:        snap.MarketID,
		Strategy:        strategy,
		Bucket:          string(cls.Bucket),
		Reasons:         reasons,
		QReq:            e.params.QReq,
		RawCostBps:      rawCostBps,
		RawEdgeBps:      rawEdgeBps,
		HardFeesBps:     bps.FeePoly + bps.FeeMerge,
		RiskPremiumBps:  e.params.RiskPremiumBps,
		ExpectedNetBps:  expectedNetBps,
		WorstLegIndex:   cls.WorstLegIndex,
		WorstSpreadBps:  cls.WorstSpreadBps,
		WorstDepth3USDC: cls.WorstDepth3USDC,
		Legs:            legs,
	}

	select {
	case e.out <- sig:
		e.counters.SignalsAdmitted.Add(1)
	default:
		e.counters.SignalsDropped.Add(1)
		slog.Warn("signal engine: queue full, dropping signal", "market_id", snap.MarketID, "signal_id", id)
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
