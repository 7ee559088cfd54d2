package cmd

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/etnz/tracker"
)

// ledgerEntry carries the flags shared by the ledger entry subcommands.
type ledgerEntry struct {
	asOf     string
	account  string
	asset    string
	quantity string
	notes    string
}

func (c *ledgerEntry) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "d", "", "Timestamp of the row in RFC 3339 format (default: now)")
	f.StringVar(&c.account, "account", "", "Account identifier")
	f.StringVar(&c.asset, "asset", "", "Asset identifier")
	f.StringVar(&c.quantity, "q", "", "Signed quantity")
	f.StringVar(&c.notes, "notes", "", "Free-form note")
}

// parse validates the shared flags and resolves the timestamp.
func (c *ledgerEntry) parse() (time.Time, tracker.Quantity, error) {
	if c.account == "" || c.asset == "" || c.quantity == "" {
		return time.Time{}, tracker.Quantity{}, fmt.Errorf("-account, -asset and -q are required")
	}
	at, err := tracker.ParseAsOf(c.asOf)
	if err != nil {
		return time.Time{}, tracker.Quantity{}, err
	}
	quantity, err := tracker.ParseQuantity(c.quantity)
	if err != nil {
		return time.Time{}, tracker.Quantity{}, fmt.Errorf("parsing quantity: %w", err)
	}
	return at, quantity, nil
}

// append writes the row and reports it.
func appendRow(tx tracker.LedgerTransaction) subcommands.ExitStatus {
	_, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if err := store.Append(tx); err != nil {
		return fail(err)
	}
	fmt.Printf("Recorded %s %s of %s on %s (id %s).\n", tx.Type, tx.Quantity, tx.AssetID, tx.AccountID, tx.ID)
	return subcommands.ExitSuccess
}

// tradeCmd holds the flags for the 'trade' subcommand.
type tradeCmd struct {
	ledgerEntry
	price string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "record a purchase or disposal" }
func (*tradeCmd) Usage() string {
	return `ptk trade -account <id> -asset <id> -q <quantity> -p <price> [-d <time>] [-notes <text>]

  Records a trade. A positive quantity is a purchase, a negative one a
  disposal; the price is the execution price per unit.
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	c.setFlags(f)
	f.StringVar(&c.price, "p", "", "Execution price per unit")
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	at, quantity, err := c.parse()
	if err != nil {
		return fail(err)
	}
	if c.price == "" {
		return fail(fmt.Errorf("-p is required"))
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return fail(fmt.Errorf("parsing price: %w", err))
	}
	return appendRow(tracker.NewTrade(at, c.account, c.asset, quantity, price, c.notes))
}

// transferCmd holds the flags for the 'transfer' subcommand.
type transferCmd struct {
	ledgerEntry
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "record one leg of an asset movement" }
func (*transferCmd) Usage() string {
	return `ptk transfer -account <id> -asset <id> -q <quantity> [-d <time>] [-notes <text>]

  Records one leg of a movement between accounts: negative on the source
  account, positive on the destination. Legs are paired afterwards; see
  'ptk issues' and 'ptk resolve'.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *transferCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	at, quantity, err := c.parse()
	if err != nil {
		return fail(err)
	}
	return appendRow(tracker.NewTransfer(at, c.account, c.asset, quantity, c.notes))
}

// feeCmd holds the flags for the 'fee' subcommand.
type feeCmd struct {
	ledgerEntry
}

func (*feeCmd) Name() string     { return "fee" }
func (*feeCmd) Synopsis() string { return "record a fee paid in an asset" }
func (*feeCmd) Usage() string {
	return `ptk fee -account <id> -asset <id> -q <quantity> [-d <time>] [-notes <text>]

  Records a fee, usually a negative quantity of the paying asset.
`
}

func (c *feeCmd) SetFlags(f *flag.FlagSet) { c.setFlags(f) }

func (c *feeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	at, quantity, err := c.parse()
	if err != nil {
		return fail(err)
	}
	return appendRow(tracker.NewFee(at, c.account, c.asset, quantity, c.notes))
}
