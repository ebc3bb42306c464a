// Package engine is the central orchestrator of the online dry-run harness.
//
// It wires together every online collaborator:
//
//  1. A Gamma client resolves each configured market's declared token list.
//  2. A market WebSocket feed publishes MarketSnapshot values onto a
//     single-slot broadcast whenever any leg updates.
//  3. A trade poller pushes TradeTicks onto a bounded, blocking queue.
//  4. The Signal Engine observes snapshots and emits admitted signals.
//  5. The Shadow Ledger drains signals, settles them against the trade
//     store once their window closes, and appends shadow rows.
//  6. A snapshot logger and a health writer append to snapshots.csv and
//     health.jsonl respectively.
//
// Lifecycle: New() -> Start() -> [runs until Stop cancels the engine's own
// context] -> Stop(). The ctx passed to New only bounds the market lookup.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"razor/internal/bps"
	"razor/internal/config"
	"razor/internal/domain"
	"razor/internal/feed"
	"razor/internal/health"
	"razor/internal/ledger"
	"razor/internal/schema"
	"razor/internal/signalengine"
	"razor/internal/tradestore"
)

const (
	tradeQueueCapacity = 1000
	healthFlushEvery   = 5 * time.Second
	maxRetainedTrades  = 200_000
)

// snapshotSlot is a single-slot, single-producer/many-observer broadcast:
// the feed ingester overwrites the latest value; each observer channel has
// capacity 1 and is drained-and-replaced on a full send, so observers only
// ever see the newest snapshot. Lost intermediate snapshots are expected
// and acceptable: stale books have no value to either observer.
type snapshotSlot struct {
	mu   sync.Mutex
	subs []chan domain.MarketSnapshot
}

func (s *snapshotSlot) subscribe() <-chan domain.MarketSnapshot {
	ch := make(chan domain.MarketSnapshot, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *snapshotSlot) publish(snap domain.MarketSnapshot) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Engine orchestrates every online component and owns their goroutines.
type Engine struct {
	cfg    *config.Config
	runID  string
	runDir string
	logger *slog.Logger

	counters *health.Counters

	gamma  *feed.GammaClient
	wsFeed *feed.MarketWSFeed
	poller *feed.TradePoller

	snapshots *snapshotSlot
	trades    *tradestore.Store
	sigEngine *signalengine.Engine
	led       *ledger.Ledger

	tradeCh chan domain.TradeTick

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New resolves every configured market's metadata via Gamma and wires the
// full online pipeline. runDir is the run's artifact directory; it must
// already exist.
func New(ctx context.Context, cfg *config.Config, runID, runDir string, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine", "run_id", runID)
	gamma := feed.NewGammaClient(cfg.Polymarket.GammaBase, logger)

	metas, err := gamma.FetchMarkets(ctx, cfg.Run.MarketIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve market metadata: %w", err)
	}

	legCount := make(map[string]int, len(metas))
	for _, m := range metas {
		legCount[m.MarketID] = len(m.TokenIDs)
	}

	counters := &health.Counters{}

	snapshots := &snapshotSlot{}
	wsFeed := feed.NewMarketWSFeed(cfg.Polymarket.WSBase, metas, snapshots.publish, logger)

	trades := tradestore.New(cfg.Shadow.TradeRetentionMs, maxRetainedTrades)
	tradeCh := make(chan domain.TradeTick, tradeQueueCapacity)
	poller := feed.NewTradePoller(cfg.Polymarket.DataAPIBase,
		time.Duration(cfg.Shadow.TradePollIntervalMs)*time.Millisecond,
		cfg.Shadow.TradePollLimit, cfg.Run.MarketIDs, tradeCh, logger)

	sigParams := signalengine.Params{
		RiskPremiumBps:   bps.Bps(cfg.Brain.RiskPremiumBps),
		MinNetEdgeBps:    bps.Bps(cfg.Brain.MinNetEdgeBps),
		QReq:             cfg.Brain.QReq,
		SignalCooldownMs: cfg.Brain.SignalCooldownMs,
	}
	sigEngine := signalengine.New(runID, sigParams, legCount, counters)

	shadowPath := filepath.Join(runDir, schema.FileShadowLog)
	led := ledger.New(runID, cfg.Shadow.WindowStartMs, cfg.Shadow.WindowEndMs,
		ledger.FillShares{Liquid: cfg.Buckets.FillShareLiquidP25, Thin: cfg.Buckets.FillShareThinP25},
		schema.DumpSlippageAssumed, trades, counters, shadowPath)

	return &Engine{
		cfg:       cfg,
		runID:     runID,
		runDir:    runDir,
		logger:    logger,
		counters:  counters,
		gamma:     gamma,
		wsFeed:    wsFeed,
		poller:    poller,
		snapshots: snapshots,
		trades:    trades,
		sigEngine: sigEngine,
		led:       led,
		tradeCh:   tradeCh,
	}, nil
}

// Start launches every goroutine. Call Stop to shut down in order.
func (e *Engine) Start() {
	e.ctx, e.cancel = context.WithCancel(context.Background())

	snapForSignals := e.snapshots.subscribe()
	snapForLogger := e.snapshots.subscribe()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.wsFeed.Run(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.poller.Run(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.consumeTrades(e.ctx) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.sigEngine.Run(e.ctx, snapForSignals) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.led.Run(e.ctx, e.sigEngine.Out()) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.logSnapshots(e.ctx, snapForLogger) }()

	e.wg.Add(1)
	go func() { defer e.wg.Done(); e.flushHealth(e.ctx) }()

	e.logger.Info("engine started", "markets", len(e.cfg.Run.MarketIDs))
}

// Stop cancels every goroutine and waits for them to exit, then flushes a
// final health snapshot. In-flight pending signals whose settlement windows
// have not yet closed are discarded rather than force-settled early.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	snap := e.healthSnapshot()
	if err := (&health.Writer{Path: filepath.Join(e.runDir, schema.FileHealth)}).AppendLine(snap); err != nil {
		e.logger.Error("final health flush failed", "error", err)
	}
	e.logger.Info("engine stopped", "snapshots_seen", snap.SnapshotsSeen, "signals_admitted", snap.SignalsAdmitted, "shadow_rows_written", snap.ShadowRowsWritten)
}

// consumeTrades drains the trade queue, pushes each tick into the trade
// store, and appends it to trades.csv.
func (e *Engine) consumeTrades(ctx context.Context) {
	tradesPath := filepath.Join(e.runDir, schema.FileTrades)
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-e.tradeCh:
			if !ok {
				return
			}
			switch e.trades.Push(tick) {
			case tradestore.Inserted:
				e.counters.TradesPushed.Add(1)
				if err := schema.AppendCSVRow(tradesPath, schema.TradesHeader, tradeRecord(tick)); err != nil {
					e.logger.Error("append trades.csv failed", "error", err)
				}
			case tradestore.Duplicated:
				e.counters.TradesDuplicated.Add(1)
			case tradestore.Dropped:
				e.counters.TradesRejected.Add(1)
			}
		}
	}
}

// logSnapshots appends every observed snapshot to snapshots.csv. It runs on
// its own subscription so it never competes with the Signal Engine for the
// broadcast's single slot.
func (e *Engine) logSnapshots(ctx context.Context, in <-chan domain.MarketSnapshot) {
	snapshotsPath := filepath.Join(e.runDir, schema.FileSnapshots)
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-in:
			if !ok {
				return
			}
			if err := schema.AppendCSVRow(snapshotsPath, schema.SnapshotsHeader, snapshotRecord(snap)); err != nil {
				e.logger.Error("append snapshots.csv failed", "error", err)
			}
		}
	}
}

// flushHealth periodically appends a health.jsonl line, giving every
// running component an externally observable heartbeat.
func (e *Engine) flushHealth(ctx context.Context) {
	w := &health.Writer{Path: filepath.Join(e.runDir, schema.FileHealth), Interval: healthFlushEvery}
	ticker := time.NewTicker(healthFlushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.AppendLine(e.healthSnapshot()); err != nil {
				e.logger.Error("health flush failed", "error", err)
			}
		}
	}
}

// healthSnapshot folds the trade store's out-of-order count into the atomic
// counters before capturing them.
func (e *Engine) healthSnapshot() health.Snapshot {
	e.counters.OutOfOrderWarnings.Store(e.trades.OutOfOrderCount())
	return e.counters.Snapshot(time.Now().UnixMilli())
}

func snapshotRecord(snap domain.MarketSnapshot) []string {
	rec := make([]string, 0, 15)
	rec = append(rec, strconv.FormatInt(snap.TsMs, 10), snap.MarketID, strconv.Itoa(len(snap.Legs)))
	for i := 0; i < 3; i++ {
		if i < len(snap.Legs) {
			leg := snap.Legs[i]
			rec = append(rec, leg.TokenID,
				strconv.FormatFloat(leg.BestBid, 'f', -1, 64),
				strconv.FormatFloat(leg.BestAsk, 'f', -1, 64),
				strconv.FormatFloat(leg.AskDepth3USDC, 'f', -1, 64))
		} else {
			rec = append(rec, "", "", "", "")
		}
	}
	return rec
}

func tradeRecord(t domain.TradeTick) []string {
	return []string{
		strconv.FormatInt(t.TsMs, 10), t.MarketID, t.TokenID,
		strconv.FormatFloat(t.Price, 'f', -1, 64), strconv.FormatFloat(t.Size, 'f', -1, 64),
		t.TradeID, strconv.FormatInt(t.IngestTsMs, 10), strconv.FormatInt(t.ExchangeTsMs, 10),
	}
}
