package tracker

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/shopspring/decimal"
)

// RecalcMode selects the replay semantics of a cost basis recalculation.
type RecalcMode string

const (
	// RecalcPure ignores prior COST_BASIS_RESET rows and replays from
	// genesis.
	RecalcPure RecalcMode = "PURE"
	// RecalcHonorResets seeds each (account, asset) from its most recent
	// checkpoint at or before as-of, a cheaper incremental recompute.
	RecalcHonorResets RecalcMode = "HONOR_RESETS"
)

// ParseRecalcMode parses a string into a RecalcMode.
func ParseRecalcMode(s string) (RecalcMode, error) {
	switch m := RecalcMode(strings.ToUpper(strings.ReplaceAll(s, "-", "_"))); m {
	case RecalcPure, RecalcHonorResets:
		return m, nil
	default:
		return "", fmt.Errorf("unknown recalculation mode: %q", s)
	}
}

// RecalcResult reports a batch recalculation. Partial completion is a
// valid, reported outcome: the operation is not all-or-nothing across
// positions.
type RecalcResult struct {
	// Created counts the checkpoint rows written.
	Created int
	// SkippedUnknown counts positions lacking a resolvable price, basis
	// continuity, or a registered account/asset.
	SkippedUnknown int
	// SkippedZeroQuantity counts positions netting to zero.
	SkippedZeroQuantity int
	// Diagnostics carries every transfer issue hit during replay. They do
	// not abort the run; resolvable positions still get their resets.
	Diagnostics []TransferIssue
}

// position identifies one (account, asset) holding.
type position struct {
	AccountID string
	AssetID   string
}

// book is the replayed lot state of one position.
type book struct {
	lots     lots
	position Quantity
	// unknown is set when basis continuity is lost: an inflow without a
	// resolvable price, an outflow exceeding the held quantity, or a
	// reconciliation landing on an empty book.
	unknown bool
}

// acquire opens a lot at the given unit price. A non-positive price still
// moves the position but loses basis continuity.
func (b *book) acquire(at time.Time, quantity Quantity, unitPrice decimal.Decimal) {
	b.position = b.position.Add(quantity)
	if !unitPrice.IsPositive() {
		b.unknown = true
		b.lots = b.lots.add(at, quantity, decimal.Decimal{})
		return
	}
	b.lots = b.lots.add(at, quantity, unitPrice.Mul(quantity.Decimal()))
}

// carry opens a lot at an explicit total cost, preserving basis carried
// from elsewhere.
func (b *book) carry(at time.Time, quantity Quantity, cost decimal.Decimal) {
	b.position = b.position.Add(quantity)
	b.lots = b.lots.add(at, quantity, cost)
}

// consumeFor disposes a positive quantity FIFO and returns its cost basis.
// Overdrawing the held quantity loses basis continuity.
func (b *book) consumeFor(quantity Quantity) decimal.Decimal {
	b.position = b.position.Sub(quantity)
	if quantity.GreaterThan(b.lots.quantity()) {
		b.unknown = true
	}
	cost := b.lots.costOfConsuming(quantity)
	b.lots = b.lots.consume(quantity)
	return cost
}

// replayResult is the lot state of every position at an instant, plus the
// transfer diagnostics hit on the way.
type replayResult struct {
	books  map[position]*book
	issues []TransferIssue
}

// replay converts the ledger up to an inclusive instant into per-position
// lot books, the way a journal of high-level rows becomes atomic lot
// events. It is a pure function of ledger state: identical inputs against
// an unchanged ledger yield identical books.
func (t *Tracker) replay(at time.Time, mode RecalcMode) (*replayResult, error) {
	rows, err := t.store.Query(Filter{Before: notAfter(at)})
	if err != nil {
		return nil, fmt.Errorf("could not query ledger: %w", err)
	}
	st, err := t.analyzeTransfers(notAfter(at))
	if err != nil {
		return nil, err
	}

	books := make(map[position]*book)
	getBook := func(p position) *book {
		b, ok := books[p]
		if !ok {
			b = &book{}
			books[p] = b
		}
		return b
	}

	// Seed from checkpoints. Rows are chronological, so the last reset per
	// position wins; everything at or before it is superseded.
	seeded := make(map[position]time.Time)
	if mode == RecalcHonorResets {
		for _, tx := range rows {
			if tx.Type != TxCostBasisReset {
				continue
			}
			p := position{tx.AccountID, tx.AssetID}
			b := getBook(p)
			b.lots = nil
			b.unknown = false
			b.position = tx.Quantity
			if !tx.Quantity.IsZero() {
				b.lots = b.lots.add(tx.DateTime, tx.Quantity, tx.UnitPrice.Mul(tx.Quantity.Decimal()))
			}
			seeded[p] = tx.DateTime
		}
	}
	superseded := func(tx LedgerTransaction) bool {
		s, ok := seeded[position{tx.AccountID, tx.AssetID}]
		return ok && !tx.DateTime.After(s)
	}

	processed := make(map[string]bool)
	for _, tx := range rows {
		if tx.Type == TxCostBasisReset || superseded(tx) {
			continue
		}
		p := position{tx.AccountID, tx.AssetID}
		switch tx.Type {
		case TxTrade, TxHedge, TxFee:
			b := getBook(p)
			if tx.Quantity.IsPositive() {
				b.acquire(tx.DateTime, tx.Quantity, tx.UnitPrice)
			} else {
				b.consumeFor(tx.Quantity.Neg())
			}

		case TxReconciliation:
			// Basis-neutral by convention: no gain or loss may be
			// recognized purely from reconciling.
			b := getBook(p)
			if tx.Quantity.IsPositive() {
				if len(b.lots) == 0 {
					// Quantity appearing from nothing has no basis to inherit.
					b.unknown = true
				}
				b.carry(tx.DateTime, tx.Quantity, b.lots.unitCost().Mul(tx.Quantity.Decimal()))
			} else {
				b.consumeFor(tx.Quantity.Neg())
			}

		case TxTransfer:
			if processed[tx.ID] {
				continue
			}
			if group, ok := st.group(tx.ID); ok {
				t.replayTransferGroup(group, getBook, superseded, processed)
				continue
			}
			processed[tx.ID] = true
			// Unmatched, ambiguous, invalid or separated legs are
			// conservatively market-valued flows.
			b := getBook(p)
			if tx.Quantity.IsPositive() {
				price := tx.UnitPrice
				if !price.IsPositive() {
					if q := t.resolvePrice(tx.AssetID); !q.Unpriced() {
						price = q.Price
					}
				}
				b.acquire(tx.DateTime, tx.Quantity, price)
			} else {
				b.consumeFor(tx.Quantity.Neg())
			}
		}
	}

	return &replayResult{books: books, issues: st.issues}, nil
}

// replayTransferGroup replays all legs of one matched transfer atomically:
// source legs are consumed first so their basis funds the destination legs
// whatever the legs' order inside the matching window. This is what keeps
// an internal move from showing a spurious realized gain or loss.
func (t *Tracker) replayTransferGroup(group []LedgerTransaction, getBook func(position) *book, superseded func(LedgerTransaction) bool, processed map[string]bool) {
	for _, leg := range group {
		processed[leg.ID] = true
	}

	var outQty Quantity
	var outCost decimal.Decimal
	srcUnknown := false
	for _, leg := range group {
		if superseded(leg) || !leg.Quantity.IsNegative() {
			continue
		}
		b := getBook(position{leg.AccountID, leg.AssetID})
		q := leg.Quantity.Neg()
		outCost = outCost.Add(b.consumeFor(q))
		outQty = outQty.Add(q)
		srcUnknown = srcUnknown || b.unknown
	}

	var unit decimal.Decimal
	if !outQty.IsZero() {
		unit = outCost.Div(outQty.Decimal())
	}
	for _, leg := range group {
		if superseded(leg) || !leg.Quantity.IsPositive() {
			continue
		}
		b := getBook(position{leg.AccountID, leg.AssetID})
		b.carry(leg.DateTime, leg.Quantity, unit.Mul(leg.Quantity.Decimal()))
		if outQty.IsZero() || srcUnknown {
			// No source side replayed, or the source itself had lost
			// continuity: the carried basis is not trustworthy.
			b.unknown = true
		}
	}
}

// RecalcCostBasis replays the ledger per (account, asset) up to as-of and
// writes one COST_BASIS_RESET checkpoint per resolvable position, capturing
// its resting quantity and unit cost. A checkpoint written at the same
// (account, asset, as-of) as a prior one replaces it, so reruns against an
// unchanged ledger are idempotent.
//
// asOf is an RFC 3339 timestamp, empty for now; a malformed one is a
// validation error before any replay. externalRef and notes attach verbatim
// to every reset row created.
func (t *Tracker) RecalcCostBasis(mode RecalcMode, asOf, externalRef, notes string) (*RecalcResult, error) {
	if mode != RecalcPure && mode != RecalcHonorResets {
		return nil, validationf("unknown recalculation mode %q", mode)
	}
	at, err := ParseAsOf(asOf)
	if err != nil {
		return nil, err
	}

	rr, err := t.replay(at, mode)
	if err != nil {
		return nil, err
	}
	res := &RecalcResult{Diagnostics: rr.issues}

	keys := slices.SortedFunc(maps.Keys(rr.books), func(a, b position) int {
		if c := strings.Compare(a.AccountID, b.AccountID); c != 0 {
			return c
		}
		return strings.Compare(a.AssetID, b.AssetID)
	})

	var created []LedgerTransaction
	var replaced []string
	for _, p := range keys {
		b := rr.books[p]
		switch {
		case !t.knownAccount(p.AccountID) || !t.knownAsset(p.AssetID):
			res.SkippedUnknown++
			log.Debug().Str("account", p.AccountID).Str("asset", p.AssetID).Msg("skip reset: unknown account or asset")
		case t.cfg.isZero(b.position):
			res.SkippedZeroQuantity++
		case b.unknown:
			res.SkippedUnknown++
			log.Debug().Str("account", p.AccountID).Str("asset", p.AssetID).Msg("skip reset: basis continuity lost")
		default:
			prior, err := t.store.Query(Filter{AccountID: p.AccountID, AssetID: p.AssetID, Type: TxCostBasisReset, Before: notAfter(at)})
			if err != nil {
				return nil, fmt.Errorf("could not query prior checkpoints: %w", err)
			}
			for _, old := range prior {
				if old.DateTime.Equal(at) {
					replaced = append(replaced, old.ID)
				}
			}
			created = append(created, NewCostBasisReset(at, p.AccountID, p.AssetID, b.position, b.lots.unitCost(), notes, externalRef))
			res.Created++
		}
	}

	if len(replaced) > 0 {
		if err := t.store.Delete(replaced...); err != nil {
			return nil, fmt.Errorf("could not replace prior checkpoints: %w", err)
		}
	}
	if len(created) > 0 {
		if err := t.store.Append(created...); err != nil {
			return nil, fmt.Errorf("could not write checkpoints: %w", err)
		}
	}

	log.Info().
		Str("mode", string(mode)).
		Int("created", res.Created).
		Int("skippedUnknown", res.SkippedUnknown).
		Int("skippedZeroQuantity", res.SkippedZeroQuantity).
		Int("diagnostics", len(res.Diagnostics)).
		Msg("cost basis recalculated")
	return res, nil
}

// knownAccount reports whether the account id resolves, treating a missing
// registry as all-knowing.
func (t *Tracker) knownAccount(id string) bool {
	if t.accounts == nil {
		return true
	}
	_, ok := t.accounts.Account(id)
	return ok
}

func (t *Tracker) knownAsset(id string) bool {
	if t.assets == nil {
		return true
	}
	_, ok := t.assets.Asset(id)
	return ok
}
