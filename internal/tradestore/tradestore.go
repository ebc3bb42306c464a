// Package tradestore implements a bounded, time-ordered in-memory tape of
// observed trade ticks, with trade-id dedup and windowed volume queries used
// by the Shadow Ledger's settlement math.
package tradestore

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"razor/internal/domain"
)

// PushResult reports what happened to a pushed tick.
type PushResult int

const (
	Inserted PushResult = iota
	Duplicated
	Dropped
)

// WindowStats summarizes tape coverage over a window, used to flag
// WINDOW_DATA_GAP and DEDUP_HIT conditions in the ledger.
type WindowStats struct {
	TradesInWindow int
	MaxGapMs       int64
	DedupHits      int
}

// dedupEvent records one rejected duplicate push, so the ledger can report
// dedup activity inside a settlement window.
type dedupEvent struct {
	marketID string
	tsMs     int64
}

// Store is a mutex-protected, time-ordered trade tape. One task pushes into
// it (the engine's trade consumer, or the replay loader offline); all other
// callers only query by value.
type Store struct {
	mu            sync.Mutex
	ticks         []domain.TradeTick
	seenTradeIDs  map[string]struct{}
	dedupEvents   []dedupEvent
	retentionMs   int64
	maxTrades     int
	dedupHits     int64
	lastWarnAt    time.Time
	outOfOrderCnt int64
}

// New creates a trade store retaining trades for retentionMs and bounded to
// maxTrades entries, whichever trims first.
func New(retentionMs int64, maxTrades int) *Store {
	return &Store{
		ticks:        make([]domain.TradeTick, 0, 1024),
		seenTradeIDs: make(map[string]struct{}),
		retentionMs:  retentionMs,
		maxTrades:    maxTrades,
	}
}

// Push inserts a tick, rejecting malformed entries and deduplicating by
// trade id. It never blocks and never returns an error: callers act on the
// PushResult.
func (s *Store) Push(t domain.TradeTick) PushResult {
	if t.TradeID == "" || t.MarketID == "" || t.TokenID == "" {
		return Dropped
	}
	if !(t.Price > 0) || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		return Dropped
	}
	if !(t.Size > 0) || math.IsNaN(t.Size) || math.IsInf(t.Size, 0) {
		return Dropped
	}
	if t.EffectiveTsMs() == 0 {
		return Dropped
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seenTradeIDs[t.TradeID]; dup {
		s.dedupHits++
		s.dedupEvents = append(s.dedupEvents, dedupEvent{marketID: t.MarketID, tsMs: t.EffectiveTsMs()})
		return Duplicated
	}
	s.seenTradeIDs[t.TradeID] = struct{}{}

	outOfOrder := len(s.ticks) > 0 && t.EffectiveTsMs() < s.ticks[len(s.ticks)-1].EffectiveTsMs()
	s.ticks = append(s.ticks, t)

	if outOfOrder {
		s.outOfOrderCnt++
		s.fullSortTrim()
		s.warnOutOfOrder()
	} else {
		s.trimFront(t.EffectiveTsMs())
	}
	return Inserted
}

// trimFront evicts from the front of the (already sorted) slice anything
// older than retention relative to nowMs, then enforces maxTrades.
func (s *Store) trimFront(nowMs int64) {
	cutoff := nowMs - s.retentionMs
	i := 0
	for i < len(s.ticks) && s.ticks[i].EffectiveTsMs() < cutoff {
		delete(s.seenTradeIDs, s.ticks[i].TradeID)
		i++
	}
	if i > 0 {
		s.ticks = append(s.ticks[:0], s.ticks[i:]...)
	}
	if over := len(s.ticks) - s.maxTrades; s.maxTrades > 0 && over > 0 {
		for _, old := range s.ticks[:over] {
			delete(s.seenTradeIDs, old.TradeID)
		}
		s.ticks = append(s.ticks[:0], s.ticks[over:]...)
	}
	j := 0
	for j < len(s.dedupEvents) && s.dedupEvents[j].tsMs < cutoff {
		j++
	}
	if j > 0 {
		s.dedupEvents = append(s.dedupEvents[:0], s.dedupEvents[j:]...)
	}
}

// fullSortTrim is the out-of-order fallback: a full stable sort by
// effective timestamp, followed by the normal retention trim using the
// newest observed timestamp as "now".
func (s *Store) fullSortTrim() {
	ticks := s.ticks
	for i := 1; i < len(ticks); i++ {
		for j := i; j > 0 && ticks[j-1].EffectiveTsMs() > ticks[j].EffectiveTsMs(); j-- {
			ticks[j-1], ticks[j] = ticks[j], ticks[j-1]
		}
	}
	if len(ticks) == 0 {
		return
	}
	s.trimFront(ticks[len(ticks)-1].EffectiveTsMs())
}

func (s *Store) warnOutOfOrder() {
	now := time.Now()
	if now.Sub(s.lastWarnAt) < 10*time.Second {
		return
	}
	s.lastWarnAt = now
	slog.Warn("trade store: out-of-order insert triggered full trim", "total_out_of_order", s.outOfOrderCnt)
}

// VolumeAtOrBetter sums the size of ticks for (marketID, tokenID) within
// [startMs, endMs] whose price is at or below priceLimit (buy semantics:
// at-or-better means at or below the limit).
func (s *Store) VolumeAtOrBetter(marketID, tokenID string, startMs, endMs int64, priceLimit float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, t := range s.ticks {
		ts := t.EffectiveTsMs()
		if ts < startMs || ts > endMs {
			continue
		}
		if t.MarketID != marketID || t.TokenID != tokenID {
			continue
		}
		if t.Price > priceLimit {
			continue
		}
		total += t.Size
	}
	return total
}

// WindowStats reports trade count and largest intra-window timestamp gap for
// a market across [startMs, endMs], used to flag WINDOW_DATA_GAP.
func (s *Store) WindowStats(marketID string, startMs, endMs int64) WindowStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats WindowStats
	var lastTs int64 = -1
	for _, t := range s.ticks {
		ts := t.EffectiveTsMs()
		if ts < startMs || ts > endMs || t.MarketID != marketID {
			continue
		}
		stats.TradesInWindow++
		if lastTs >= 0 {
			if gap := ts - lastTs; gap > stats.MaxGapMs {
				stats.MaxGapMs = gap
			}
		}
		lastTs = ts
	}
	for _, ev := range s.dedupEvents {
		if ev.marketID == marketID && ev.tsMs >= startMs && ev.tsMs <= endMs {
			stats.DedupHits++
		}
	}
	return stats
}

// DedupHits reports how many pushes were recognized as duplicates so far.
func (s *Store) DedupHits() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dedupHits
}

// OutOfOrderCount reports how many inserts arrived behind the tape head.
func (s *Store) OutOfOrderCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outOfOrderCnt
}

// Len reports the current number of retained ticks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}
