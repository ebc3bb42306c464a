// Package replay deterministically regenerates signals and shadow rows from
// a recorded snapshots.csv/trades.csv tape plus a run's config.toml, without
// depending on wallclock time: it stamps each signal's timestamp from the
// snapshot's own ts_ms, so a replay of the same inputs always produces the
// same output.
package replay

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"razor/internal/bps"
	"razor/internal/config"
	"razor/internal/domain"
	"razor/internal/health"
	"razor/internal/ledger"
	"razor/internal/schema"
	"razor/internal/signalengine"
	"razor/internal/tradestore"
)

// Result summarizes one replay run.
type Result struct {
	RowsWritten int
	OutputDir   string
	OutputPath  string
}

// Run reads snapshots.csv and trades.csv from runDir, regenerates signals
// under cfg, settles them against the trade tape, and writes
// replay_shadow_log.csv into a fresh runDir/<replayRunID>/ subdirectory.
func Run(runDir, replayRunID string, cfg *config.Config) (Result, error) {
	snapshots, err := ReadSnapshots(filepath.Join(runDir, schema.FileSnapshots))
	if err != nil {
		return Result{}, fmt.Errorf("read snapshots: %w", err)
	}
	ticks, err := ReadTrades(filepath.Join(runDir, schema.FileTrades))
	if err != nil {
		return Result{}, fmt.Errorf("read trades: %w", err)
	}

	// Unlike the online store, replay queries windows arbitrarily far in the
	// past, so retention must cover the whole recorded tape.
	trades := tradestore.New(math.MaxInt64/2, 0)
	for _, t := range ticks {
		trades.Push(t)
	}

	legCount := map[string]int{}
	for _, s := range snapshots {
		legCount[s.MarketID] = len(s.Legs)
	}

	counters := &health.Counters{}
	params := signalengine.Params{
		RiskPremiumBps:   bps.Bps(cfg.Brain.RiskPremiumBps),
		MinNetEdgeBps:    bps.Bps(cfg.Brain.MinNetEdgeBps),
		QReq:             cfg.Brain.QReq,
		SignalCooldownMs: cfg.Brain.SignalCooldownMs,
	}
	engine := signalengine.New(replayRunID, params, legCount, counters)

	outDir := filepath.Join(runDir, replayRunID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create replay dir: %w", err)
	}
	outPath := filepath.Join(outDir, schema.FileReplayShadowLog)
	// A rerun under the same replay id starts from a clean log.
	_ = os.Remove(outPath)

	l := ledger.New(replayRunID,
		cfg.Shadow.WindowStartMs, cfg.Shadow.WindowEndMs,
		ledger.FillShares{Liquid: cfg.Buckets.FillShareLiquidP25, Thin: cfg.Buckets.FillShareThinP25},
		schema.DumpSlippageAssumed, trades, counters, outPath)

	rows := 0
	for _, snap := range snapshots {
		// Offline signal timestamps come from the snapshot's own ts_ms, not
		// wallclock time, so replay is fully deterministic.
		engine.OnSnapshotAt(snap, snap.TsMs)
	}
	for {
		select {
		case sig := <-engine.Out():
			row := l.Settle(sig)
			if err := schema.AppendCSVRow(outPath, schema.ShadowLogHeader, ledger.RowToRecord(row)); err != nil {
				return Result{}, err
			}
			rows++
		default:
			return Result{RowsWritten: rows, OutputDir: outDir, OutputPath: outPath}, nil
		}
	}
}

// ReadSnapshots reads and parses snapshots.csv, shared with the Brain Sweep
// CLI which also replays a recorded snapshot tape.
func ReadSnapshots(path string) ([]domain.MarketSnapshot, error) {
	records, err := schema.ReadCSVStrict(path, schema.SnapshotsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MarketSnapshot, 0, len(records))
	for _, rec := range records {
		snap, err := parseSnapshotRow(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func parseSnapshotRow(rec []string) (domain.MarketSnapshot, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("parse ts_ms: %w", err)
	}
	marketID := rec[1]
	legsN, err := strconv.Atoi(rec[2])
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("parse legs_n: %w", err)
	}
	legs := make([]domain.LegSnapshot, 0, legsN)
	for i := 0; i < legsN; i++ {
		base := 3 + i*4
		tokenID := rec[base]
		bid, _ := strconv.ParseFloat(rec[base+1], 64)
		ask, _ := strconv.ParseFloat(rec[base+2], 64)
		depth, _ := strconv.ParseFloat(rec[base+3], 64)
		legs = append(legs, domain.LegSnapshot{TokenID: tokenID, BestBid: bid, BestAsk: ask, AskDepth3USDC: depth})
	}
	return domain.MarketSnapshot{MarketID: marketID, TsMs: ts, Legs: legs}, nil
}

// ReadTrades reads and parses trades.csv, shared with the Brain Sweep CLI.
func ReadTrades(path string) ([]domain.TradeTick, error) {
	records, err := schema.ReadCSVStrict(path, schema.TradesHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TradeTick, 0, len(records))
	for _, rec := range records {
		ts, _ := strconv.ParseInt(rec[0], 10, 64)
		price, _ := strconv.ParseFloat(rec[3], 64)
		size, _ := strconv.ParseFloat(rec[4], 64)
		ingest, _ := strconv.ParseInt(rec[6], 10, 64)
		exch, _ := strconv.ParseInt(rec[7], 10, 64)
		out = append(out, domain.TradeTick{
			TsMs: ts, MarketID: rec[1], TokenID: rec[2], Price: price, Size: size,
			TradeID: rec[5], IngestTsMs: ingest, ExchangeTsMs: exch,
		})
	}
	return out, nil
}
