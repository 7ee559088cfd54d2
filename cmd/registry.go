package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/etnz/tracker"
)

// accountCmd holds the flags for the 'account' subcommand.
type accountCmd struct {
	id   string
	name string
}

func (*accountCmd) Name() string     { return "account" }
func (*accountCmd) Synopsis() string { return "declare or rename a holding account" }
func (*accountCmd) Usage() string {
	return `ptk account -id <id> [-name <name>]

  Declares a holding account (an exchange, a wallet, a broker) in the
  registry, or updates its display name.
`
}

func (c *accountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Account identifier")
	f.StringVar(&c.name, "name", "", "Display name")
}

func (c *accountCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		return fail(fmt.Errorf("-id is required"))
	}
	_, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if err := store.UpsertAccount(tracker.Account{ID: c.id, Name: c.name}); err != nil {
		return fail(err)
	}
	fmt.Printf("Account %q saved.\n", c.id)
	return subcommands.ExitSuccess
}

// assetCmd holds the flags for the 'asset' subcommand.
type assetCmd struct {
	id     string
	symbol string
	name   string
	mode   string
	price  string
}

func (*assetCmd) Name() string     { return "asset" }
func (*assetCmd) Synopsis() string { return "declare or update a tracked asset" }
func (*assetCmd) Usage() string {
	return `ptk asset -id <id> -symbol <symbol> [-name <name>] [-mode AUTO|MANUAL] [-price <decimal>]

  Declares an asset in the registry. MANUAL assets are valued at the given
  price; AUTO assets go through the market price resolver.
`
}

func (c *assetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Asset identifier")
	f.StringVar(&c.symbol, "symbol", "", "Ticker symbol")
	f.StringVar(&c.name, "name", "", "Display name")
	f.StringVar(&c.mode, "mode", "MANUAL", "Pricing mode: AUTO or MANUAL")
	f.StringVar(&c.price, "price", "0", "Manual price per unit")
}

func (c *assetCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" || c.symbol == "" {
		return fail(fmt.Errorf("-id and -symbol are required"))
	}
	mode, err := tracker.ParsePricingMode(c.mode)
	if err != nil {
		return fail(err)
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		return fail(fmt.Errorf("parsing price: %w", err))
	}

	_, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	asset := tracker.Asset{ID: c.id, Symbol: c.symbol, Name: c.name, PricingMode: mode, ManualPrice: price}
	if err := store.UpsertAsset(asset); err != nil {
		return fail(err)
	}
	fmt.Printf("Asset %q saved.\n", c.id)
	return subcommands.ExitSuccess
}
