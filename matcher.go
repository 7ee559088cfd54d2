package tracker

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IssueKind classifies an unresolved transfer group.
type IssueKind string

const (
	// IssueUnmatched is a single TRANSFER leg with no counterparty in the
	// matching window.
	IssueUnmatched IssueKind = "UNMATCHED"
	// IssueAmbiguous is a group with more than two legs: several pairings
	// are possible and a human must select one.
	IssueAmbiguous IssueKind = "AMBIGUOUS"
	// IssueInvalidLegs is a group whose quantities sum away from zero
	// beyond the fee tolerance.
	IssueInvalidLegs IssueKind = "INVALID_LEGS"
	// IssueFeeMismatch is a two-leg group with a small nonzero residual
	// within the fee tolerance, typically a transfer fee taken in kind.
	IssueFeeMismatch IssueKind = "FEE_MISMATCH"
)

// TransferIssue is one unresolved transfer group. Issues are derived, never
// persisted: every diagnostic pass recomputes them from the
// transfer_group_id and separated markers on the rows themselves.
type TransferIssue struct {
	// Key is stable for an unchanged group across passes, so callers can
	// batch-select issues between two calls.
	Key      string              `json:"key"`
	AssetID  string              `json:"assetId"`
	DateTime time.Time           `json:"dateTime"`
	Kind     IssueKind           `json:"issue"`
	LegIDs   []string            `json:"legIds"`
	Legs     []LedgerTransaction `json:"legs"`
}

// ResolveAction is a human-directed resolution of transfer legs.
type ResolveAction string

const (
	// ActionMatch links the selected legs as the sides of one transfer.
	ActionMatch ResolveAction = "MATCH"
	// ActionSeparate marks the selected legs as intentionally non-transfer.
	ActionSeparate ResolveAction = "SEPARATE"
)

// ParseResolveAction parses a string into a ResolveAction.
func ParseResolveAction(s string) (ResolveAction, error) {
	switch a := ResolveAction(strings.ToUpper(s)); a {
	case ActionMatch, ActionSeparate:
		return a, nil
	default:
		return "", fmt.Errorf("unknown resolve action: %q", s)
	}
}

// transferState is the outcome of one diagnostic pass over the TRANSFER
// legs of the ledger.
type transferState struct {
	// matched maps a leg id to all legs of its transfer group, whether the
	// group was persisted by MATCH or auto-matched as an inverse pair.
	matched map[string][]LedgerTransaction
	issues  []TransferIssue
}

// isMatched reports whether a leg belongs to a transfer group, and returns
// the group's legs.
func (st *transferState) group(legID string) ([]LedgerTransaction, bool) {
	g, ok := st.matched[legID]
	return g, ok
}

// analyzeTransfers groups the TRANSFER legs before the given bound (zero
// means all) and classifies the unresolved ones. It is a pure function of
// the current ledger state.
func (t *Tracker) analyzeTransfers(before time.Time) (*transferState, error) {
	legs, err := t.store.Query(Filter{Type: TxTransfer, Before: before})
	if err != nil {
		return nil, fmt.Errorf("could not query transfer legs: %w", err)
	}

	st := &transferState{matched: make(map[string][]LedgerTransaction)}

	// Legs already linked by a human form their groups as-is; separated
	// legs are out of diagnostics for good.
	persisted := make(map[string][]LedgerTransaction)
	var open []LedgerTransaction
	for _, leg := range legs {
		switch {
		case leg.TransferGroupID != "":
			persisted[leg.TransferGroupID] = append(persisted[leg.TransferGroupID], leg)
		case leg.Separated:
			// intentionally non-transfer
		default:
			open = append(open, leg)
		}
	}
	for _, group := range persisted {
		for _, leg := range group {
			st.matched[leg.ID] = group
		}
	}

	// Cluster the open legs by (asset, matching window).
	slices.SortFunc(open, func(a, b LedgerTransaction) int {
		if c := strings.Compare(a.AssetID, b.AssetID); c != 0 {
			return c
		}
		return compareChrono(a, b)
	})
	var group []LedgerTransaction
	flush := func() {
		if len(group) > 0 {
			t.classify(st, group)
			group = nil
		}
	}
	for _, leg := range open {
		if len(group) > 0 &&
			(leg.AssetID != group[0].AssetID ||
				leg.DateTime.Sub(group[0].DateTime) > t.cfg.MatchWindow) {
			flush()
		}
		group = append(group, leg)
	}
	flush()

	slices.SortFunc(st.issues, func(a, b TransferIssue) int {
		if c := a.DateTime.Compare(b.DateTime); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return st, nil
}

// classify decides the fate of one group of unresolved same-asset legs.
func (t *Tracker) classify(st *transferState, group []LedgerTransaction) {
	switch {
	case len(group) == 1:
		st.issues = append(st.issues, t.newIssue(IssueUnmatched, group))
	case len(group) > 2:
		// Several pairings are possible; a human must select.
		st.issues = append(st.issues, t.newIssue(IssueAmbiguous, group))
	default:
		residual := group[0].Quantity.Add(group[1].Quantity)
		switch {
		case t.cfg.isZero(residual):
			// Additive inverses: auto-matchable, no diagnostic.
			for _, leg := range group {
				st.matched[leg.ID] = group
			}
		case !residual.Abs().GreaterThan(Q(t.cfg.FeeTolerance)):
			st.issues = append(st.issues, t.newIssue(IssueFeeMismatch, group))
		default:
			st.issues = append(st.issues, t.newIssue(IssueInvalidLegs, group))
		}
	}
}

// newIssue builds the derived diagnostic for a group. The key hashes the
// asset, the rounded timestamp and the unresolved leg ids.
func (t *Tracker) newIssue(kind IssueKind, group []LedgerTransaction) TransferIssue {
	ids := make([]string, 0, len(group))
	for _, leg := range group {
		ids = append(ids, leg.ID)
	}
	slices.Sort(ids)

	h := fnv.New64a()
	h.Write([]byte(group[0].AssetID))
	h.Write([]byte(group[0].DateTime.Truncate(t.cfg.MatchWindow).Format(time.RFC3339)))
	for _, id := range ids {
		h.Write([]byte(id))
	}

	return TransferIssue{
		Key:      fmt.Sprintf("%016x", h.Sum64()),
		AssetID:  group[0].AssetID,
		DateTime: group[0].DateTime,
		Kind:     kind,
		LegIDs:   ids,
		Legs:     group,
	}
}

// ListTransferIssues recomputes the transfer diagnostics from the current
// ledger state. Issues are never thrown as errors: FEE_MISMATCH and
// AMBIGUOUS groups are data for the caller to decide on.
func (t *Tracker) ListTransferIssues() ([]TransferIssue, error) {
	st, err := t.analyzeTransfers(time.Time{})
	if err != nil {
		return nil, err
	}
	return st.issues, nil
}

// ResolveTransfer applies a human-directed resolution to a set of legs.
// MATCH accepts any caller-selected set of at least two same-asset legs,
// including the union of leg ids across several issues; SEPARATE removes
// legs from future diagnostics without requiring a counterparty.
//
// Validation happens before any mutation: a failed resolve leaves every leg
// untouched.
func (t *Tracker) ResolveTransfer(legIDs []string, action ResolveAction) error {
	switch action {
	case ActionMatch:
		return t.matchLegs(legIDs)
	case ActionSeparate:
		return t.separateLegs(legIDs)
	default:
		return validationf("unknown resolve action %q", action)
	}
}

// fetchLegs loads and checks the selected legs. Unknown ids are a hard
// failure here, unlike in batch recalculation.
func (t *Tracker) fetchLegs(legIDs []string) ([]LedgerTransaction, error) {
	legs := make([]LedgerTransaction, 0, len(legIDs))
	for _, id := range legIDs {
		leg, err := t.store.Get(id)
		if err != nil {
			return nil, err
		}
		if leg.Type != TxTransfer {
			return nil, validationf("transaction %s is a %s, not a transfer leg", id, leg.Type)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func (t *Tracker) matchLegs(legIDs []string) error {
	if len(legIDs) < 2 {
		return validationf("matching requires at least 2 legs, got %d", len(legIDs))
	}
	legs, err := t.fetchLegs(legIDs)
	if err != nil {
		return err
	}
	for _, leg := range legs[1:] {
		if leg.AssetID != legs[0].AssetID {
			return validationf("cannot match legs across assets %s and %s", legs[0].AssetID, leg.AssetID)
		}
	}

	group := uuid.NewString()
	joined := false
	for _, leg := range legs {
		if err := t.store.Update(leg.ID, Fields{TransferGroupID: &group, Separated: &joined}); err != nil {
			return fmt.Errorf("could not link leg %s: %w", leg.ID, err)
		}
	}
	return nil
}

func (t *Tracker) separateLegs(legIDs []string) error {
	if len(legIDs) == 0 {
		return validationf("separating requires at least 1 leg")
	}
	legs, err := t.fetchLegs(legIDs)
	if err != nil {
		return err
	}

	var noGroup string
	separated := true
	for _, leg := range legs {
		if err := t.store.Update(leg.ID, Fields{TransferGroupID: &noGroup, Separated: &separated}); err != nil {
			return fmt.Errorf("could not separate leg %s: %w", leg.ID, err)
		}
	}
	return nil
}
