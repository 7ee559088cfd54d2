package tracker

import (
	"errors"
	"testing"
)

// resetRows fetches the checkpoint rows for one position, oldest first.
func resetRows(t *testing.T, store LedgerStore, accountID, assetID string) []LedgerTransaction {
	t.Helper()
	rows, err := store.Query(Filter{AccountID: accountID, AssetID: assetID, Type: TxCostBasisReset})
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRecalcCostBasis_TransferCarriesBasis(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("2"), dec("30000"), "buy"),
		NewTransfer(hours(0), "exchange", "BTC", qty("-1"), ""),
		NewTransfer(hours(0), "cold", "BTC", qty("1"), ""),
	)

	res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "ref-1", "nightly")
	if err != nil {
		t.Fatalf("RecalcCostBasis() error: %v", err)
	}
	if res.Created != 2 || res.SkippedUnknown != 0 || res.SkippedZeroQuantity != 0 {
		t.Fatalf("result = %+v, want 2 created and nothing skipped", res)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}

	// The destination inherits the source's acquisition cost, not the
	// market price at transfer time.
	for _, account := range []string{"exchange", "cold"} {
		rows := resetRows(t, store, account, "BTC")
		if len(rows) != 1 {
			t.Fatalf("%s: got %d checkpoints, want 1", account, len(rows))
		}
		if !rows[0].Quantity.Equal(qty("1")) {
			t.Errorf("%s: quantity = %s, want 1", account, rows[0].Quantity)
		}
		if !rows[0].UnitPrice.Equal(dec("30000")) {
			t.Errorf("%s: unit cost = %s, want 30000", account, rows[0].UnitPrice)
		}
		if rows[0].ExternalReference != "ref-1" || rows[0].Notes != "nightly" {
			t.Errorf("%s: annotations not carried: %+v", account, rows[0])
		}
	}
}

func TestRecalcCostBasis_PureIsIdempotent(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("2"), dec("30000"), ""),
	)

	first, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Created != 1 || second.Created != 1 {
		t.Fatalf("created %d then %d, want 1 and 1", first.Created, second.Created)
	}

	// A rerun at the same instant replaces its prior checkpoint instead of
	// stacking a second one.
	rows := resetRows(t, store, "exchange", "BTC")
	if len(rows) != 1 {
		t.Fatalf("got %d checkpoints, want 1", len(rows))
	}
	if !rows[0].Quantity.Equal(qty("2")) || !rows[0].UnitPrice.Equal(dec("30000")) {
		t.Errorf("checkpoint = %+v, want 2 @ 30000", rows[0])
	}
}

func TestRecalcCostBasis_KeepsCheckpointHistoryAcrossInstants(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("2"), dec("30000"), ""),
	)

	if _, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(2)), "", ""); err != nil {
		t.Fatal(err)
	}
	rows := resetRows(t, store, "exchange", "BTC")
	if len(rows) != 2 {
		t.Fatalf("got %d checkpoints, want one per instant", len(rows))
	}
}

func TestRecalcCostBasis_Modes(t *testing.T) {
	ledger := func() []LedgerTransaction {
		return []LedgerTransaction{
			NewCostBasisReset(hours(-1), "exchange", "BTC", qty("3"), dec("10000"), "", ""),
			NewTrade(hours(0), "exchange", "BTC", qty("1"), dec("30000"), ""),
		}
	}

	t.Run("pure ignores checkpoints", func(t *testing.T) {
		tracker, store := newTestTracker(t, ledger()...)
		res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "", "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Created != 1 {
			t.Fatalf("created = %d, want 1", res.Created)
		}
		rows := resetRows(t, store, "exchange", "BTC")
		created := rows[len(rows)-1]
		if !created.Quantity.Equal(qty("1")) || !created.UnitPrice.Equal(dec("30000")) {
			t.Errorf("checkpoint = %s @ %s, want 1 @ 30000", created.Quantity, created.UnitPrice)
		}
	})

	t.Run("honor resets seeds from the checkpoint", func(t *testing.T) {
		tracker, store := newTestTracker(t, ledger()...)
		res, err := tracker.RecalcCostBasis(RecalcHonorResets, rfc(hours(1)), "", "")
		if err != nil {
			t.Fatal(err)
		}
		if res.Created != 1 {
			t.Fatalf("created = %d, want 1", res.Created)
		}
		rows := resetRows(t, store, "exchange", "BTC")
		created := rows[len(rows)-1]
		// Seeded 3 @ 10000 plus 1 @ 30000: 4 units at 15000 average.
		if !created.Quantity.Equal(qty("4")) || !created.UnitPrice.Equal(dec("15000")) {
			t.Errorf("checkpoint = %s @ %s, want 4 @ 15000", created.Quantity, created.UnitPrice)
		}
	})
}

func TestRecalcCostBasis_SkipsZeroQuantityPositions(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("1"), dec("100"), ""),
		NewTrade(hours(-1), "exchange", "BTC", qty("-1"), dec("120"), ""),
	)

	res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(0)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 0 || res.SkippedZeroQuantity != 1 {
		t.Fatalf("result = %+v, want the flat position skipped", res)
	}
	if rows := resetRows(t, store, "exchange", "BTC"); len(rows) != 0 {
		t.Fatalf("got %d checkpoints for a flat position, want 0", len(rows))
	}
}

func TestRecalcCostBasis_SkipsUnknownBasis(t *testing.T) {
	tracker, _ := newTestTracker(t,
		// Asset absent from the registry.
		NewTrade(hours(-2), "exchange", "DOGE", qty("10"), dec("1"), ""),
		// Inflow with no acquisition price loses basis continuity.
		NewTrade(hours(-2), "exchange", "BTC", qty("1"), dec("0"), ""),
		// Overdraw: selling more than was ever held.
		NewTrade(hours(-2), "exchange", "ETH", qty("-1"), dec("2000"), ""),
	)

	res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(0)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 0 {
		t.Errorf("created = %d, want 0", res.Created)
	}
	if res.SkippedUnknown != 3 {
		t.Errorf("skippedUnknown = %d, want 3: %+v", res.SkippedUnknown, res)
	}
}

func TestRecalcCostBasis_DiagnosticsDoNotAbort(t *testing.T) {
	tracker, _ := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("1"), dec("100"), ""),
		// Lone inflow leg: flagged, then valued at the resolver price.
		NewTransfer(hours(0), "cold", "ETH", qty("1"), ""),
	)

	res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(1)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != IssueUnmatched {
		t.Fatalf("diagnostics = %+v, want one UNMATCHED", res.Diagnostics)
	}
	if res.Created != 2 {
		t.Fatalf("created = %d, want both positions checkpointed despite the issue", res.Created)
	}
}

func TestRecalcCostBasis_InvalidArguments(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("1"), dec("100"), ""),
	)

	tests := []struct {
		name string
		mode RecalcMode
		asOf string
	}{
		{name: "unknown mode", mode: RecalcMode("APPROXIMATE"), asOf: rfc(hours(0))},
		{name: "malformed as_of", mode: RecalcPure, asOf: "not-a-time"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tracker.RecalcCostBasis(tc.mode, tc.asOf, "", "")
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got %T, want *ValidationError: %v", err, err)
			}
			if rows := resetRows(t, store, "exchange", "BTC"); len(rows) != 0 {
				t.Fatalf("failed recalc wrote %d rows", len(rows))
			}
		})
	}
}

func TestRecalcCostBasis_ExcludesRowsAfterAsOf(t *testing.T) {
	tracker, store := newTestTracker(t,
		NewTrade(hours(-2), "exchange", "BTC", qty("1"), dec("100"), ""),
		NewTrade(hours(2), "exchange", "BTC", qty("1"), dec("200"), ""),
	)

	res, err := tracker.RecalcCostBasis(RecalcPure, rfc(hours(0)), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Created != 1 {
		t.Fatalf("created = %d, want 1", res.Created)
	}
	rows := resetRows(t, store, "exchange", "BTC")
	if !rows[0].Quantity.Equal(qty("1")) || !rows[0].UnitPrice.Equal(dec("100")) {
		t.Errorf("checkpoint = %s @ %s, want 1 @ 100 (later trade excluded)", rows[0].Quantity, rows[0].UnitPrice)
	}
}
