package tracker

import (
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Holding is one resolved position joined with its price for valuation
// display.
type Holding struct {
	AccountID string
	AssetID   string

	Quantity  Quantity
	UnitCost  decimal.Decimal
	CostBasis decimal.Decimal
	// BasisUnknown flags a position whose replay lost basis continuity;
	// its UnitCost and CostBasis are not trustworthy.
	BasisUnknown bool

	Quote Quote
	// Unpriced flags a missing or non-positive price. MarketValue and
	// UnrealizedGain are then zero and meaningless rather than "0 worth".
	Unpriced       bool
	MarketValue    decimal.Decimal
	UnrealizedGain decimal.Decimal
}

// Holdings replays the ledger to as-of (honoring checkpoints) and joins the
// nonzero positions with resolved prices. A stale or missing price degrades
// the row, never fails the call.
func (t *Tracker) Holdings(asOf string) ([]Holding, error) {
	at, err := ParseAsOf(asOf)
	if err != nil {
		return nil, err
	}
	rr, err := t.replay(at, RecalcHonorResets)
	if err != nil {
		return nil, err
	}

	keys := slices.SortedFunc(maps.Keys(rr.books), func(a, b position) int {
		if c := strings.Compare(a.AccountID, b.AccountID); c != 0 {
			return c
		}
		return strings.Compare(a.AssetID, b.AssetID)
	})

	var holdings []Holding
	for _, p := range keys {
		b := rr.books[p]
		if t.cfg.isZero(b.position) {
			continue
		}
		h := Holding{
			AccountID:    p.AccountID,
			AssetID:      p.AssetID,
			Quantity:     b.position,
			UnitCost:     b.lots.unitCost(),
			CostBasis:    b.lots.cost(),
			BasisUnknown: b.unknown,
		}
		h.Quote = t.resolvePrice(p.AssetID)
		h.Unpriced = h.Quote.Unpriced()
		if !h.Unpriced {
			h.MarketValue = h.Quote.Price.Mul(b.position.Decimal())
			if !b.unknown {
				h.UnrealizedGain = h.MarketValue.Sub(h.CostBasis)
			}
		}
		holdings = append(holdings, h)
	}
	return holdings, nil
}
