package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

// holdingsCmd holds the flags for the 'holdings' subcommand.
type holdingsCmd struct {
	asOf string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display positions with cost basis and valuation" }
func (*holdingsCmd) Usage() string {
	return `ptk holdings [-d <time>]

  Replays the ledger (honoring checkpoints) and lists every nonzero
  position with its cost basis and, when a price resolves, its market value
  and unrealized gain. Unpriced or stale prices are flagged, never treated
  as zero.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "d", "", "Instant to report at, RFC 3339 (default: now)")
}

func (c *holdingsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tr, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	holdings, err := tr.Holdings(c.asOf)
	if err != nil {
		return fail(err)
	}
	if len(holdings) == 0 {
		fmt.Println("No holdings.")
		return subcommands.ExitSuccess
	}

	fmt.Printf("%-12s %-8s %14s %14s %14s %14s %14s\n",
		"ACCOUNT", "ASSET", "QUANTITY", "UNIT COST", "COST BASIS", "MARKET VALUE", "UNREAL. GAIN")
	for _, h := range holdings {
		unitCost, costBasis := h.UnitCost.String(), h.CostBasis.String()
		if h.BasisUnknown {
			unitCost, costBasis = "?", "?"
		}
		value, gain := "unpriced", ""
		if !h.Unpriced {
			value = h.MarketValue.String()
			if h.Quote.IsStale {
				value += " (stale)"
			}
			if !h.BasisUnknown {
				gain = h.UnrealizedGain.String()
			}
		}
		fmt.Printf("%-12s %-8s %14s %14s %14s %14s %14s\n",
			h.AccountID, h.AssetID, h.Quantity, unitCost, costBasis, value, gain)
	}
	return subcommands.ExitSuccess
}
