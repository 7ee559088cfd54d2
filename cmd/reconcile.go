package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/etnz/tracker"
)

// reconcileCmd holds the flags for the 'reconcile' subcommand.
type reconcileCmd struct {
	asOf    string
	commit  bool
	replace bool
	notes   string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "align ledger balances with observed ones" }
func (*reconcileCmd) Usage() string {
	return `ptk reconcile [-d <time>] [-commit] [-replace] [-notes <text>] <account:asset:quantity> [...]

  Compares the ledger balance of each listed position against the observed
  target quantity. Without -commit it only previews the deltas; with
  -commit it writes one basis-neutral RECONCILIATION row per nonzero delta.
  -replace first removes reconciliation rows previously committed for the
  same positions at the same instant.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "d", "", "Instant to reconcile at, RFC 3339 (default: now)")
	f.BoolVar(&c.commit, "commit", false, "write the adjustment rows instead of previewing")
	f.BoolVar(&c.replace, "replace", false, "supersede prior reconciliations at the same instant")
	f.StringVar(&c.notes, "notes", "", "Note recorded on the adjustment rows")
}

// parseTargets parses account:asset:quantity arguments.
func (c *reconcileCmd) parseTargets(args []string) ([]tracker.ReconciliationTarget, error) {
	var targets []tracker.ReconciliationTarget
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed target %q, want account:asset:quantity", arg)
		}
		quantity, err := tracker.ParseQuantity(parts[2])
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", arg, err)
		}
		targets = append(targets, tracker.ReconciliationTarget{
			AccountID:      parts[0],
			AssetID:        parts[1],
			TargetQuantity: quantity,
			Notes:          c.notes,
		})
	}
	return targets, nil
}

func (c *reconcileCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	targets, err := c.parseTargets(f.Args())
	if err != nil {
		return fail(err)
	}

	tr, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if c.commit {
		created, err := tr.CommitReconcile(c.asOf, targets, c.replace)
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Adjustment rows created: %d\n", created)
		return subcommands.ExitSuccess
	}

	preview, err := tr.PreviewReconcile(c.asOf, targets)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Preview at %s:\n", preview.AsOf.Format("2006-01-02 15:04:05 MST"))
	for _, row := range preview.Rows {
		action := "in sync"
		if row.WillCreate {
			action = fmt.Sprintf("would adjust by %s", row.DeltaQuantity)
		}
		fmt.Printf("  %s/%s: ledger %s, observed %s, %s\n",
			row.AccountID, row.AssetID, row.CurrentQuantity, row.TargetQuantity, action)
	}
	return subcommands.ExitSuccess
}
