// Package domain holds the shared value types that flow through the signal
// and settlement pipeline: snapshots, signals, trade ticks, and shadow rows.
// Its only internal dependency is the bps fixed-point package.
package domain

import "razor/internal/bps"

// ————————————————————————————————————————————————
// Strategy and bucket tags
// ————————————————————————————————————————————————

// Strategy names the market shape a signal was derived from.
type Strategy string

const (
	Binary   Strategy = "binary"   // 2-leg market
	Triangle Strategy = "triangle" // 3-leg market
)

// StrategyFor returns the strategy implied by a leg count, and false if the
// count is not a supported market shape.
func StrategyFor(legCount int) (Strategy, bool) {
	switch legCount {
	case 2:
		return Binary, true
	case 3:
		return Triangle, true
	default:
		return "", false
	}
}

// ————————————————————————————————————————————————
// Snapshots
// ————————————————————————————————————————————————

// LegSnapshot is one outcome token's top-of-book state at a point in time.
type LegSnapshot struct {
	TokenID       string
	BestBid       float64
	BestAsk       float64
	AskDepth3USDC float64 // notional sum of the top 3 ask levels, in quote currency
	TsRecvUs      int64   // local receive timestamp, microseconds
}

// MarketSnapshot is one observation of all legs of a binary or triangle
// market. Legs is always length 2 or 3.
type MarketSnapshot struct {
	MarketID string
	TsMs     int64
	Legs     []LegSnapshot
}

// ————————————————————————————————————————————————
// Signals
// ————————————————————————————————————————————————

// Side is always Buy in this system: the harness only ever models buying
// legs to form a set, never shorting.
type Side string

const (
	Buy Side = "buy"
)

// Leg is one leg of an admitted signal, frozen at signal time.
type Leg struct {
	LegIndex        int
	TokenID         string
	Side            Side
	LimitPrice      float64 // best ask at signal time
	Qty             float64 // q_req
	BestBidAtSignal float64
	BestAskAtSignal float64
}

// Signal is one admitted arbitrage opportunity: the legs summed to less
// than par by more than the configured edge after fees and risk premium.
type Signal struct {
	RunID            string
	SignalID         uint64
	SignalTsMs       int64
	MarketID         string
	Strategy         Strategy
	Bucket           string // buckets.Bucket value, stored as a plain string
	Reasons          []string
	QReq             float64
	RawCostBps       bps.Bps
	RawEdgeBps       bps.Bps
	HardFeesBps      bps.Bps
	RiskPremiumBps   bps.Bps
	ExpectedNetBps   bps.Bps
	WorstLegIndex    int
	WorstSpreadBps   bps.Bps
	WorstDepth3USDC  float64
	Legs             []Leg
}

// ————————————————————————————————————————————————
// Trade tape
// ————————————————————————————————————————————————

// TradeTick is one observed fill on the exchange tape.
type TradeTick struct {
	TsMs         int64
	IngestTsMs   int64
	ExchangeTsMs int64 // 0 if unknown
	MarketID     string
	TokenID      string
	Price        float64
	Size         float64
	TradeID      string
}

// EffectiveTsMs is the timestamp used for window membership: IngestTsMs
// when present, otherwise TsMs.
func (t TradeTick) EffectiveTsMs() int64 {
	if t.IngestTsMs != 0 {
		return t.IngestTsMs
	}
	return t.TsMs
}

// ————————————————————————————————————————————————
// Settlement
// ————————————————————————————————————————————————

// LegSettlement is one leg's settlement detail within a shadow row.
type LegSettlement struct {
	TokenID  string
	PLimit   float64
	BestBid  float64
	VMkt     float64
	QFill    float64
}

// ShadowRow is one fully-settled signal outcome, matching the 38-column
// frozen shadow_log.csv schema.
type ShadowRow struct {
	RunID              string
	SchemaVersion      string
	SignalID           uint64
	SignalTsUnixMs     int64
	WindowStartMs      int64
	WindowEndMs        int64
	MarketID           string
	Strategy           Strategy
	Bucket             string
	WorstLegTokenID    string
	QReq               float64
	LegsN              int
	QSet               float64
	Legs               [3]LegSettlement // unused legs zero-valued
	CostSet            float64
	ProceedsSet        float64
	PnlSet             float64
	PnlLeftTotal       float64
	TotalPnl           float64
	QFillAvg           float64
	SetRatio           float64
	FillSharePUsed     float64
	DumpSlippageUsed   float64
	Notes              string
}
