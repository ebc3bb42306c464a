package feed

import (
	"testing"

	"razor/internal/domain"
)

func newTestFeed(t *testing.T) (*MarketWSFeed, *[]domain.MarketSnapshot) {
	t.Helper()
	var published []domain.MarketSnapshot
	f := NewMarketWSFeed("wss://example.invalid/ws", []MarketMeta{
		{MarketID: "mkt1", TokenIDs: []string{"tokYes", "tokNo"}},
	}, func(s domain.MarketSnapshot) { published = append(published, s) }, testLogger())
	return f, &published
}

func TestOnBookEventPublishesSnapshot(t *testing.T) {
	t.Parallel()
	f, published := newTestFeed(t)

	f.OnBookEvent("tokYes", []priceLevel{{Price: "0.48", Size: "100"}}, []priceLevel{{Price: "0.49", Size: "200"}, {Price: "0.50", Size: "50"}})

	if len(*published) != 1 {
		t.Fatalf("published = %d snapshots, want 1", len(*published))
	}
	snap := (*published)[0]
	if snap.MarketID != "mkt1" {
		t.Errorf("MarketID = %q, want mkt1", snap.MarketID)
	}
	if len(snap.Legs) != 2 {
		t.Fatalf("Legs len = %d, want 2", len(snap.Legs))
	}
	leg0 := snap.Legs[0]
	if leg0.TokenID != "tokYes" {
		t.Errorf("Legs[0].TokenID = %q, want tokYes", leg0.TokenID)
	}
	if leg0.BestBid != 0.48 {
		t.Errorf("BestBid = %v, want 0.48", leg0.BestBid)
	}
	if leg0.BestAsk != 0.49 {
		t.Errorf("BestAsk = %v, want 0.49", leg0.BestAsk)
	}
	wantDepth := 0.49*200 + 0.50*50
	if leg0.AskDepth3USDC != wantDepth {
		t.Errorf("AskDepth3USDC = %v, want %v", leg0.AskDepth3USDC, wantDepth)
	}
	// Other leg hasn't received a book event yet: zero-valued.
	if snap.Legs[1].TokenID != "tokNo" {
		t.Errorf("Legs[1].TokenID = %q, want tokNo", snap.Legs[1].TokenID)
	}
}

func TestOnPriceChangeUpdatesOnlyMutatedSide(t *testing.T) {
	t.Parallel()
	f, published := newTestFeed(t)

	f.OnBookEvent("tokYes", []priceLevel{{Price: "0.48", Size: "100"}}, []priceLevel{{Price: "0.49", Size: "200"}})
	f.OnPriceChange(wsPriceChangeEvent{AssetID: "tokYes", Side: "BUY", Price: "0.475"})

	snap := (*published)[len(*published)-1]
	leg0 := snap.Legs[0]
	if leg0.BestBid != 0.475 {
		t.Errorf("BestBid after price_change = %v, want 0.475", leg0.BestBid)
	}
	if leg0.BestAsk != 0.49 {
		t.Errorf("BestAsk should be untouched by a BUY-side price_change, got %v", leg0.BestAsk)
	}
}

func TestOnBookEventUnknownTokenIgnored(t *testing.T) {
	t.Parallel()
	f, published := newTestFeed(t)
	f.OnBookEvent("unknown-token", nil, nil)
	if len(*published) != 0 {
		t.Errorf("expected no publish for unknown token, got %d", len(*published))
	}
}

func TestTopNNotionalLimitsToThreeLevels(t *testing.T) {
	t.Parallel()
	asks := []priceLevel{
		{Price: "0.50", Size: "10"},
		{Price: "0.49", Size: "20"},
		{Price: "0.51", Size: "5"},
		{Price: "0.60", Size: "1000"}, // 4th level, must not count
	}
	got := topNNotional(asks, 3)
	want := 0.49*20 + 0.50*10 + 0.51*5
	if got != want {
		t.Errorf("topNNotional = %v, want %v", got, want)
	}
}
