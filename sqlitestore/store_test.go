package sqlitestore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/tracker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func qty(s string) tracker.Quantity { return tracker.Q(dec(s)) }

func TestStore_AppendGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	at := time.Date(2025, time.March, 10, 12, 0, 0, 123456789, time.UTC)
	tx := tracker.NewTrade(at, "exchange", "BTC", qty("1.5"), dec("30000.25"), "first buy")
	tx.ExternalReference = "stmt-42"
	require.NoError(t, store.Append(tx))

	got, err := store.Get(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.True(t, got.DateTime.Equal(at), "got %v, want %v", got.DateTime, at)
	assert.Equal(t, tracker.TxTrade, got.Type)
	assert.True(t, got.Quantity.Equal(qty("1.5")))
	assert.True(t, got.UnitPrice.Equal(dec("30000.25")))
	assert.Equal(t, "first buy", got.Notes)
	assert.Equal(t, "stmt-42", got.ExternalReference)
}

func TestStore_GetUnknown(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("missing")
	var nf *tracker.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "transaction", nf.Kind)
}

func TestStore_QueryOrderAndFilter(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	// Sub-second instants catch encodings that do not sort textually.
	early := tracker.NewTrade(base.Add(100*time.Millisecond), "exchange", "BTC", qty("1"), dec("100"), "")
	mid := tracker.NewTransfer(base.Add(150*time.Millisecond), "exchange", "ETH", qty("-1"), "")
	late := tracker.NewTrade(base.Add(time.Second), "cold", "BTC", qty("2"), dec("110"), "")
	require.NoError(t, store.Append(late, early, mid))

	rows, err := store.Query(tracker.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{early.ID, mid.ID, late.ID}, []string{rows[0].ID, rows[1].ID, rows[2].ID})

	rows, err = store.Query(tracker.Filter{AccountID: "exchange"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = store.Query(tracker.Filter{Type: tracker.TxTransfer})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mid.ID, rows[0].ID)

	// Before is exclusive.
	rows, err = store.Query(tracker.Filter{Before: base.Add(150 * time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, early.ID, rows[0].ID)
}

func TestStore_Update(t *testing.T) {
	store := openTestStore(t)

	leg := tracker.NewTransfer(time.Now(), "exchange", "BTC", qty("-1"), "")
	require.NoError(t, store.Append(leg))

	group := "grp-1"
	sep := false
	require.NoError(t, store.Update(leg.ID, tracker.Fields{TransferGroupID: &group, Separated: &sep}))

	got, err := store.Get(leg.ID)
	require.NoError(t, err)
	assert.Equal(t, "grp-1", got.TransferGroupID)
	assert.False(t, got.Separated)

	var nf *tracker.NotFoundError
	err = store.Update("missing", tracker.Fields{TransferGroupID: &group})
	require.ErrorAs(t, err, &nf)
}

func TestStore_Delete(t *testing.T) {
	store := openTestStore(t)

	a := tracker.NewTrade(time.Now(), "exchange", "BTC", qty("1"), dec("100"), "")
	b := tracker.NewTrade(time.Now(), "exchange", "BTC", qty("2"), dec("100"), "")
	require.NoError(t, store.Append(a, b))

	require.NoError(t, store.Delete(a.ID, "unknown-id"))

	rows, err := store.Query(tracker.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].ID)
}

func TestStore_Registries(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.UpsertAccount(tracker.Account{ID: "exchange", Name: "Exchange"}))
	require.NoError(t, store.UpsertAsset(tracker.Asset{
		ID: "GOLD", Symbol: "XAU", PricingMode: tracker.PricingManual, ManualPrice: dec("1900"),
	}))

	account, ok := store.Account("exchange")
	require.True(t, ok)
	assert.Equal(t, "Exchange", account.Name)

	asset, ok := store.Asset("GOLD")
	require.True(t, ok)
	assert.Equal(t, tracker.PricingManual, asset.PricingMode)
	assert.True(t, asset.ManualPrice.Equal(dec("1900")))

	_, ok = store.Account("missing")
	assert.False(t, ok)

	// Upsert overwrites.
	require.NoError(t, store.UpsertAccount(tracker.Account{ID: "exchange", Name: "Main Exchange"}))
	account, _ = store.Account("exchange")
	assert.Equal(t, "Main Exchange", account.Name)
}

func TestStore_DrivesTracker(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpsertAccount(tracker.Account{ID: "exchange"}))
	require.NoError(t, store.UpsertAccount(tracker.Account{ID: "cold"}))
	require.NoError(t, store.UpsertAsset(tracker.Asset{
		ID: "BTC", Symbol: "BTC", PricingMode: tracker.PricingManual, ManualPrice: dec("50000"),
	}))

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(
		tracker.NewTrade(base, "exchange", "BTC", qty("2"), dec("30000"), ""),
		tracker.NewTransfer(base.Add(time.Hour), "exchange", "BTC", qty("-1"), ""),
		tracker.NewTransfer(base.Add(time.Hour), "cold", "BTC", qty("1"), ""),
	))

	core := tracker.New(store, store, store, tracker.RegistryResolver{Assets: store}, tracker.Config{})
	res, err := core.RecalcCostBasis(tracker.RecalcPure, base.Add(2*time.Hour).Format(time.RFC3339), "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Diagnostics)

	resets, err := store.Query(tracker.Filter{Type: tracker.TxCostBasisReset, AccountID: "cold"})
	require.NoError(t, err)
	require.Len(t, resets, 1)
	assert.True(t, resets[0].UnitPrice.Equal(dec("30000")), "carried unit cost = %s", resets[0].UnitPrice)
}
