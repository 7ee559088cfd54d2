package tracker

import (
	"errors"
	"testing"
)

func TestHoldings(t *testing.T) {
	tracker, _ := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("2"), dec("30000"), ""),
		// Flat position, never listed.
		NewTrade(hours(-2), "exchange", "ETH", qty("1"), dec("2000"), ""),
		NewTrade(hours(-1), "exchange", "ETH", qty("-1"), dec("2100"), ""),
	)

	holdings, err := tracker.Holdings(rfc(hours(0)))
	if err != nil {
		t.Fatalf("Holdings() error: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("got %d holdings, want 1: %+v", len(holdings), holdings)
	}

	h := holdings[0]
	if h.AccountID != "exchange" || h.AssetID != "BTC" {
		t.Fatalf("holding = %s/%s, want exchange/BTC", h.AccountID, h.AssetID)
	}
	if !h.Quantity.Equal(qty("2")) || !h.UnitCost.Equal(dec("30000")) || !h.CostBasis.Equal(dec("60000")) {
		t.Errorf("position = %s @ %s (basis %s), want 2 @ 30000 (60000)", h.Quantity, h.UnitCost, h.CostBasis)
	}
	if h.Unpriced || !h.Quote.Price.Equal(dec("50000")) {
		t.Errorf("quote = %+v, want 50000", h.Quote)
	}
	if !h.MarketValue.Equal(dec("100000")) || !h.UnrealizedGain.Equal(dec("40000")) {
		t.Errorf("valuation = %s / %s, want 100000 / 40000", h.MarketValue, h.UnrealizedGain)
	}
}

func TestHoldings_UnpricedAsset(t *testing.T) {
	// XRP is registered but absent from the price table.
	tracker, _ := newTestTracker(t,
		NewTrade(hours(-1), "cold", "XRP", qty("100"), dec("0.5"), ""),
	)

	holdings, err := tracker.Holdings(rfc(hours(0)))
	if err != nil {
		t.Fatal(err)
	}
	if len(holdings) != 1 {
		t.Fatalf("got %d holdings, want 1", len(holdings))
	}
	h := holdings[0]
	if !h.Unpriced {
		t.Fatalf("holding = %+v, want unpriced", h)
	}
	if !h.MarketValue.IsZero() || !h.UnrealizedGain.IsZero() {
		t.Errorf("unpriced holding carries valuation %s / %s", h.MarketValue, h.UnrealizedGain)
	}
	// Basis is still known: pricing and accounting degrade independently.
	if h.BasisUnknown || !h.CostBasis.Equal(dec("50")) {
		t.Errorf("basis = %s (unknown=%v), want 50 known", h.CostBasis, h.BasisUnknown)
	}
}

func TestHoldings_HonorsCheckpoints(t *testing.T) {
	tracker, _ := newTestTracker(t,
		NewCostBasisReset(hours(-1), "exchange", "BTC", qty("3"), dec("10000"), "", ""),
	)

	holdings, err := tracker.Holdings(rfc(hours(0)))
	if err != nil {
		t.Fatal(err)
	}
	if len(holdings) != 1 {
		t.Fatalf("got %d holdings, want 1", len(holdings))
	}
	h := holdings[0]
	if !h.Quantity.Equal(qty("3")) || !h.UnitCost.Equal(dec("10000")) {
		t.Errorf("holding = %s @ %s, want seeded 3 @ 10000", h.Quantity, h.UnitCost)
	}
}

func TestHoldings_MalformedAsOf(t *testing.T) {
	tracker, _ := newTestTracker(t)
	_, err := tracker.Holdings("yesterday")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %T, want *ValidationError: %v", err, err)
	}
}
