package tracker

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// testTime is the reference instant all fixtures shift from.
var testTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// hours returns the reference instant shifted by a number of hours.
func hours(h int) time.Time { return testTime.Add(time.Duration(h) * time.Hour) }

// rfc formats an instant the way operation timestamps are passed in.
func rfc(at time.Time) string { return at.Format(time.RFC3339) }

// dec is a helper for tests to build decimals from constants.
func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// qty is a helper for tests to build quantities from constants.
func qty(s string) Quantity { return Q(dec(s)) }

var testAccounts = AccountSet{
	"exchange": {ID: "exchange", Name: "Exchange"},
	"cold":     {ID: "cold", Name: "Cold Wallet"},
	"broker":   {ID: "broker", Name: "Broker"},
}

var testAssets = AssetSet{
	"BTC": {ID: "BTC", Symbol: "BTC"},
	"ETH": {ID: "ETH", Symbol: "ETH"},
	"XRP": {ID: "XRP", Symbol: "XRP"},
}

func testPrices() StaticResolver {
	return StaticResolver{"BTC": dec("50000"), "ETH": dec("2000")}
}

// testConfig pins explicit tolerance values: classification tests must not
// depend on defaults.
func testConfig() Config {
	return Config{
		MatchWindow:          time.Hour,
		QuantityEpsilon:      decimal.New(1, -8),
		FeeTolerance:         decimal.New(5, -1),
		PriceRefreshInterval: 15 * time.Minute,
	}
}

// newTestTracker builds a tracker over an in-memory ledger with the pinned
// test tolerances.
func newTestTracker(t *testing.T, txs ...LedgerTransaction) (*Tracker, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(txs...)
	return New(store, testAccounts, testAssets, testPrices(), testConfig()), store
}
