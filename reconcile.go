package tracker

import (
	"fmt"
	"time"

	"github.com/phuslu/log"
)

// ReconciliationTarget asserts "as of time T, this account holds this
// quantity of this asset". Targets are transient input; only the resulting
// RECONCILIATION rows persist.
type ReconciliationTarget struct {
	AccountID      string
	AssetID        string
	TargetQuantity Quantity
	Notes          string
}

// ReconcileRow is the computed true-up for one target.
type ReconcileRow struct {
	AccountID       string
	AssetID         string
	CurrentQuantity Quantity
	TargetQuantity  Quantity
	DeltaQuantity   Quantity
	// WillCreate is false when the delta is zero within the configured
	// epsilon: nothing to adjust.
	WillCreate bool
}

// ReconcilePreview is the dry-run result. AsOf is the server-resolved
// instant, returned so a later commit can use the exact same bound and not
// drift with the clock.
type ReconcilePreview struct {
	AsOf time.Time
	Rows []ReconcileRow
}

// validateTargets rejects malformed target lists before any computation.
func (t *Tracker) validateTargets(targets []ReconciliationTarget) error {
	if len(targets) == 0 {
		return validationf("reconciliation requires at least one target")
	}
	seen := make(map[position]bool, len(targets))
	for _, target := range targets {
		if !t.knownAccount(target.AccountID) {
			return notFound("account", target.AccountID)
		}
		if !t.knownAsset(target.AssetID) {
			return notFound("asset", target.AssetID)
		}
		p := position{target.AccountID, target.AssetID}
		if seen[p] {
			return validationf("duplicate target for account %s asset %s", target.AccountID, target.AssetID)
		}
		seen[p] = true
	}
	return nil
}

// currentQuantity replays the signed quantities of one position up to an
// inclusive instant. COST_BASIS_RESET rows are checkpoints, not movements,
// and do not count.
func (t *Tracker) currentQuantity(accountID, assetID string, at time.Time) (Quantity, error) {
	rows, err := t.store.Query(Filter{AccountID: accountID, AssetID: assetID, Before: notAfter(at)})
	if err != nil {
		return Quantity{}, fmt.Errorf("could not query position: %w", err)
	}
	var q Quantity
	for _, tx := range rows {
		if tx.Type == TxCostBasisReset {
			continue
		}
		q = q.Add(tx.Quantity)
	}
	return q, nil
}

// reconcileRows computes the true-up rows for the targets at an instant.
func (t *Tracker) reconcileRows(at time.Time, targets []ReconciliationTarget) ([]ReconcileRow, error) {
	rows := make([]ReconcileRow, 0, len(targets))
	for _, target := range targets {
		current, err := t.currentQuantity(target.AccountID, target.AssetID, at)
		if err != nil {
			return nil, err
		}
		delta := target.TargetQuantity.Sub(current)
		rows = append(rows, ReconcileRow{
			AccountID:       target.AccountID,
			AssetID:         target.AssetID,
			CurrentQuantity: current,
			TargetQuantity:  target.TargetQuantity,
			DeltaQuantity:   delta,
			WillCreate:      !t.cfg.isZero(delta),
		})
	}
	return rows, nil
}

// PreviewReconcile computes the adjusting entries the targets would
// require, without writing anything. asOf is RFC 3339, empty for now.
func (t *Tracker) PreviewReconcile(asOf string, targets []ReconciliationTarget) (*ReconcilePreview, error) {
	at, err := ParseAsOf(asOf)
	if err != nil {
		return nil, err
	}
	if err := t.validateTargets(targets); err != nil {
		return nil, err
	}
	rows, err := t.reconcileRows(at, targets)
	if err != nil {
		return nil, err
	}
	return &ReconcilePreview{AsOf: at, Rows: rows}, nil
}

// CommitReconcile recomputes the targets exactly like PreviewReconcile and
// writes one basis-neutral RECONCILIATION row per nonzero delta. With
// replaceExisting, prior RECONCILIATION rows at the same
// (account, asset, as-of) are deleted first instead of stacked, making the
// commit idempotent under repeated adjustment.
//
// A commit whose recomputed state diverges from an earlier preview
// (concurrent ledger writes in between) is accepted as last-writer-wins.
// That is a documented limitation of the two-phase protocol, not an
// invariant; tightening it would take a ledger version counter.
func (t *Tracker) CommitReconcile(asOf string, targets []ReconciliationTarget, replaceExisting bool) (int, error) {
	at, err := ParseAsOf(asOf)
	if err != nil {
		return 0, err
	}
	if err := t.validateTargets(targets); err != nil {
		return 0, err
	}

	if replaceExisting {
		var stale []string
		for _, target := range targets {
			prior, err := t.store.Query(Filter{AccountID: target.AccountID, AssetID: target.AssetID, Type: TxReconciliation, Before: notAfter(at)})
			if err != nil {
				return 0, fmt.Errorf("could not query prior reconciliations: %w", err)
			}
			for _, old := range prior {
				if old.DateTime.Equal(at) {
					stale = append(stale, old.ID)
				}
			}
		}
		if len(stale) > 0 {
			if err := t.store.Delete(stale...); err != nil {
				return 0, fmt.Errorf("could not replace prior reconciliations: %w", err)
			}
		}
	}

	rows, err := t.reconcileRows(at, targets)
	if err != nil {
		return 0, err
	}

	var created []LedgerTransaction
	for i, row := range rows {
		if !row.WillCreate {
			continue
		}
		created = append(created, NewReconciliation(at, row.AccountID, row.AssetID, row.DeltaQuantity, targets[i].Notes))
	}
	if len(created) > 0 {
		if err := t.store.Append(created...); err != nil {
			return 0, fmt.Errorf("could not write reconciliations: %w", err)
		}
	}

	log.Info().Int("created", len(created)).Str("asOf", at.Format(time.RFC3339)).Msg("reconciliation committed")
	return len(created), nil
}
