package tracker

import (
	"time"
)

// Tracker wires the ledger store, the registries and the price resolver
// into the reconciliation and cost-basis accounting engine. It holds no
// state of its own: every operation is a request-scoped computation over
// the current ledger, so identical inputs against an unchanged ledger
// produce identical output.
type Tracker struct {
	store    LedgerStore
	accounts AccountRegistry
	assets   AssetRegistry
	prices   PriceResolver
	cfg      Config
}

// New creates a Tracker over a ledger store. Zero-valued Config fields are
// filled with the defaults. prices may be nil, in which case every asset is
// unpriced.
func New(store LedgerStore, accounts AccountRegistry, assets AssetRegistry, prices PriceResolver, cfg Config) *Tracker {
	return &Tracker{
		store:    store,
		accounts: accounts,
		assets:   assets,
		prices:   prices,
		cfg:      cfg.withDefaults(),
	}
}

// Config returns the tolerances the tracker operates with.
func (t *Tracker) Config() Config { return t.cfg }

// notAfter turns an inclusive as-of instant into the exclusive upper bound
// used by ledger queries.
func notAfter(at time.Time) time.Time { return at.Add(time.Nanosecond) }

// resolvePrice asks the resolver for a quote, degrading to unpriced when
// the resolver is absent or fails. Price unavailability never aborts a
// computation.
func (t *Tracker) resolvePrice(assetID string) Quote {
	if t.prices == nil {
		return Quote{}
	}
	q, err := t.prices.ResolvePrice(assetID)
	if err != nil {
		return Quote{}
	}
	return q
}
