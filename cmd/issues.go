package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
)

// issuesCmd holds the flags for the 'issues' subcommand.
type issuesCmd struct {
	asJSON bool
}

func (*issuesCmd) Name() string     { return "issues" }
func (*issuesCmd) Synopsis() string { return "list unresolved transfer groups" }
func (*issuesCmd) Usage() string {
	return `ptk issues [-json]

  Recomputes the transfer diagnostics from the current ledger: unmatched
  legs, ambiguous groups, invalid pairings and fee mismatches. Issue keys
  are stable across runs and are the handles passed to 'ptk resolve'.
`
}

func (c *issuesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "emit the issues as JSON")
}

func (c *issuesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	tr, store, err := openTracker()
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	issues, err := tr.ListTransferIssues()
	if err != nil {
		return fail(err)
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(issues); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	if len(issues) == 0 {
		fmt.Println("No transfer issues.")
		return subcommands.ExitSuccess
	}
	for _, issue := range issues {
		fmt.Printf("%s  %-12s  %s  %s\n  legs: %s\n",
			issue.Key, issue.Kind, issue.AssetID,
			issue.DateTime.Format(time.RFC3339),
			strings.Join(issue.LegIDs, ", "))
	}
	return subcommands.ExitSuccess
}
