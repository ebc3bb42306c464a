package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"razor/internal/domain"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second // ~2 missed pings triggers reconnect
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	depthLevels      = 3 // ask_depth3_usdc sums the top 3 ask levels
)

// priceLevel is one book level on the CLOB market-channel wire format.
type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// wsBookEvent is a full order-book snapshot for one token.
type wsBookEvent struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Bids      []priceLevel `json:"bids"`
	Asks      []priceLevel `json:"asks"`
}

// wsPriceChangeEvent is an incremental top-of-book update for one token.
type wsPriceChangeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Size      string `json:"size"`
}

// legMirror is one outcome token's locally mirrored top-of-book state.
type legMirror struct {
	bestBid float64
	bestAsk float64
	depth3  float64
}

func (m *legMirror) applySnapshot(bids, asks []priceLevel) {
	m.bestBid = bestPrice(bids, sortDesc)
	m.bestAsk = bestPrice(asks, sortAsc)
	m.depth3 = topNNotional(asks, depthLevels)
}

const (
	sortAsc = iota
	sortDesc
)

func bestPrice(levels []priceLevel, order int) float64 {
	if len(levels) == 0 {
		return 0
	}
	sorted := append([]priceLevel(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := parseF(sorted[i].Price), parseF(sorted[j].Price)
		if order == sortDesc {
			return pi > pj
		}
		return pi < pj
	})
	return parseF(sorted[0].Price)
}

func topNNotional(asks []priceLevel, n int) float64 {
	sorted := append([]priceLevel(nil), asks...)
	sort.Slice(sorted, func(i, j int) bool { return parseF(sorted[i].Price) < parseF(sorted[j].Price) })
	if n > len(sorted) {
		n = len(sorted)
	}
	total := 0.0
	for _, lvl := range sorted[:n] {
		total += parseF(lvl.Price) * parseF(lvl.Size)
	}
	return total
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// MarketWSFeed subscribes to book/price_change events for every leg token
// across a set of declared markets, maintains a local best-bid/best-ask/
// depth3 mirror per leg, and invokes Publish with a fresh MarketSnapshot
// whenever any leg of a market updates. It reconnects with exponential
// backoff (1s doubling to a 30s cap).
type MarketWSFeed struct {
	url     string
	Publish func(domain.MarketSnapshot)
	logger  *slog.Logger

	legToMarket map[string]string   // token id -> market id
	marketLegs  map[string][]string // market id -> ordered token ids

	mu    sync.Mutex
	conn  *websocket.Conn
	books map[string]*legMirror // token id -> mirrored book
}

// NewMarketWSFeed creates a feed for the given markets. publish is called
// (never concurrently) every time a leg update produces a fresh snapshot.
func NewMarketWSFeed(wsURL string, markets []MarketMeta, publish func(domain.MarketSnapshot), logger *slog.Logger) *MarketWSFeed {
	legToMarket := make(map[string]string)
	marketLegs := make(map[string][]string)
	books := make(map[string]*legMirror)
	for _, m := range markets {
		marketLegs[m.MarketID] = append([]string(nil), m.TokenIDs...)
		for _, tok := range m.TokenIDs {
			legToMarket[tok] = m.MarketID
			books[tok] = &legMirror{}
		}
	}
	return &MarketWSFeed{
		url:         wsURL,
		Publish:     publish,
		logger:      logger.With("component", "market_ws_feed"),
		legToMarket: legToMarket,
		marketLegs:  marketLegs,
		books:       books,
	}
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *MarketWSFeed) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("market ws feed disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *MarketWSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		conn.Close()
		f.conn = nil
		f.mu.Unlock()
	}()

	if err := f.subscribeAll(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("market ws feed connected", "markets", len(f.marketLegs))

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *MarketWSFeed) subscribeAll() error {
	ids := make([]string, 0, len(f.legToMarket))
	for id := range f.legToMarket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	msg := struct {
		Type     string   `json:"type"`
		AssetIDs []string `json:"assets_ids"`
	}{Type: "market", AssetIDs: ids}
	return f.writeJSON(msg)
}

func (f *MarketWSFeed) writeJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *MarketWSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				f.conn.WriteMessage(websocket.TextMessage, []byte("PING"))
			}
			f.mu.Unlock()
		}
	}
}

func (f *MarketWSFeed) dispatch(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}
	switch envelope.EventType {
	case "book":
		var evt wsBookEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal book event", "error", err)
			return
		}
		f.OnBookEvent(evt.AssetID, evt.Bids, evt.Asks)
	case "price_change":
		var evt wsPriceChangeEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			f.logger.Error("unmarshal price_change event", "error", err)
			return
		}
		f.OnPriceChange(evt)
	default:
		f.logger.Debug("ignoring event", "type", envelope.EventType)
	}
}

// OnBookEvent applies a full book snapshot for one token and publishes the
// owning market's snapshot. Exported so tests can drive the mirror without a
// live socket.
func (f *MarketWSFeed) OnBookEvent(assetID string, bids, asks []priceLevel) {
	f.mu.Lock()
	book, ok := f.books[assetID]
	if !ok {
		f.mu.Unlock()
		return
	}
	book.applySnapshot(bids, asks)
	marketID := f.legToMarket[assetID]
	snap := f.snapshotLocked(marketID)
	f.mu.Unlock()

	if f.Publish != nil {
		f.Publish(snap)
	}
}

// OnPriceChange applies an incremental top-of-book update. The CLOB
// price_change event only carries the mutated side's best price (not
// depth3); depth3 keeps its last known value until the next full snapshot.
func (f *MarketWSFeed) OnPriceChange(evt wsPriceChangeEvent) {
	f.mu.Lock()
	book, ok := f.books[evt.AssetID]
	if !ok {
		f.mu.Unlock()
		return
	}
	price := parseF(evt.Price)
	if evt.Side == "BUY" {
		book.bestBid = price
	} else {
		book.bestAsk = price
	}
	marketID := f.legToMarket[evt.AssetID]
	snap := f.snapshotLocked(marketID)
	f.mu.Unlock()

	if f.Publish != nil {
		f.Publish(snap)
	}
}

// snapshotLocked builds a MarketSnapshot for marketID from the current leg
// mirrors. Caller must hold f.mu.
func (f *MarketWSFeed) snapshotLocked(marketID string) domain.MarketSnapshot {
	tokenIDs := f.marketLegs[marketID]
	legs := make([]domain.LegSnapshot, len(tokenIDs))
	for i, tok := range tokenIDs {
		b := f.books[tok]
		legs[i] = domain.LegSnapshot{
			TokenID:       tok,
			BestBid:       b.bestBid,
			BestAsk:       b.bestAsk,
			AskDepth3USDC: b.depth3,
			TsRecvUs:      time.Now().UnixMicro(),
		}
	}
	return domain.MarketSnapshot{MarketID: marketID, TsMs: time.Now().UnixMilli(), Legs: legs}
}
