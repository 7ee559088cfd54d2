// Package tracker reconciles a chronological ledger of signed asset
// movements into consistent per-account holdings, cost basis, and valuation.
// It is the accounting core of a personal multi-account portfolio tracker.
//
// The core functionalities include:
//   - Transfer Matching: Recognizing which TRANSFER legs are the sides of one
//     physical move between accounts, classifying the unresolved ones, and
//     applying human-directed resolutions so cost basis is preserved across
//     internal moves.
//   - Cost Basis Recalculation: Replaying the ledger per (account, asset)
//     with FIFO lot consumption, either from genesis (PURE) or from the most
//     recent checkpoint (HONOR_RESETS), and emitting COST_BASIS_RESET
//     checkpoint entries.
//   - Reconciliation: A two-phase preview/commit protocol that trues up a
//     computed position to an externally asserted balance with basis-neutral
//     adjusting entries.
//   - Price Resolution: A small contract for manual and cached market prices
//     with explicit staleness, so consumers can degrade to "unpriced" instead
//     of failing.
//
// The ledger itself lives behind the LedgerStore interface; this package
// ships an in-memory store, and the sqlitestore package provides a durable
// one. This package serves as the foundational logic for the `ptk`
// command-line tool.
package tracker
