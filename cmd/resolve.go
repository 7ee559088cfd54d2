package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/etnz/tracker"
)

// resolveCmd holds the flags for the 'resolve' subcommand.
type resolveCmd struct {
	action string
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "match or separate transfer legs" }
func (*resolveCmd) Usage() string {
	return `ptk resolve -action MATCH|SEPARATE <leg-id> [<leg-id>...]

  MATCH links the listed legs (at least two, same asset) as the sides of
  one transfer: the recalculator then carries cost basis across them.
  SEPARATE marks the listed legs as intentionally standalone so they stop
  appearing as issues.
`
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.action, "action", "", "Resolution action: MATCH or SEPARATE")
}

func (c *resolveCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action, err := tracker.ParseResolveAction(c.action)
	if err != nil {
		return fail(err)
	}
	legIDs := f.Args()
	if len(legIDs) == 0 {
		return fail(fmt.Errorf("no leg ids given"))
	}

	tr, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if err := tr.ResolveTransfer(legIDs, action); err != nil {
		return fail(err)
	}
	fmt.Printf("%s applied to legs %s.\n", action, strings.Join(legIDs, ", "))
	return subcommands.ExitSuccess
}
