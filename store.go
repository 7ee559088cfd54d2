package tracker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filter selects a subset of the ledger. Zero-valued fields match
// everything; Before is an exclusive upper time bound.
type Filter struct {
	AccountID string
	AssetID   string
	Type      TxType
	Before    time.Time
}

// Matches reports whether a row passes the filter.
func (f Filter) Matches(tx LedgerTransaction) bool {
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.AssetID != "" && tx.AssetID != f.AssetID {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if !f.Before.IsZero() && !tx.DateTime.Before(f.Before) {
		return false
	}
	return true
}

// Fields is the set of mutable row fields. A nil pointer leaves the field
// untouched. Only the matcher state is mutable: everything else in a ledger
// row is an immutable fact.
type Fields struct {
	TransferGroupID *string
	Separated       *bool
}

// LedgerStore is the append-only, queryable log of transactions the core
// operates on. It is the sole shared mutable resource; implementations
// enforce single-writer discipline with their native transactions.
type LedgerStore interface {
	// Append adds rows to the ledger.
	Append(txs ...LedgerTransaction) error
	// Get returns the row with the given id, or a NotFoundError.
	Get(id string) (LedgerTransaction, error)
	// Query returns the matching rows in chronological order.
	Query(f Filter) ([]LedgerTransaction, error)
	// Update mutates the matcher state of one row.
	Update(id string, fields Fields) error
	// Delete removes rows by id. Unknown ids are ignored.
	Delete(ids ...string) error
}

// Account is a registry entry for a holding account (an exchange, a wallet,
// a broker).
type Account struct {
	ID   string
	Name string
}

// Asset is a registry entry for a tracked asset.
type Asset struct {
	ID     string
	Symbol string
	Name   string

	// PricingMode selects how the asset is priced; ManualPrice is the stored
	// price served unconditionally in MANUAL mode.
	PricingMode PricingMode
	ManualPrice decimal.Decimal
}

// AccountRegistry is a read-only account lookup, used to validate ids and
// for diagnostic display.
type AccountRegistry interface {
	Account(id string) (Account, bool)
}

// AssetRegistry is a read-only asset lookup.
type AssetRegistry interface {
	Asset(id string) (Asset, bool)
}

// AccountSet is an in-memory AccountRegistry.
type AccountSet map[string]Account

func (s AccountSet) Account(id string) (Account, bool) {
	a, ok := s[id]
	return a, ok
}

// AssetSet is an in-memory AssetRegistry.
type AssetSet map[string]Asset

func (s AssetSet) Asset(id string) (Asset, bool) {
	a, ok := s[id]
	return a, ok
}
