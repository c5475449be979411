package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/auditable/pkg/config"
)

func newPoliciesCommand() *Command {
	return &Command{
		Name:        "policies",
		Description: "Validate a policy file and print the resulting policies",
		Run:         runPolicies,
	}
}

func runPolicies(_ context.Context, app *App, args []string) error {
	fs := newFlagSet("policies", app.Out)
	file := fs.String("file", "", "Policy file to check (default: the configured policies)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tENABLED\tCREATIONS\tLIMIT\tCLEANUP\tINCLUDE\tEXCLUDE")

	if *file != "" {
		policies, err := config.LoadPolicies(*file)
		if err != nil {
			return err
		}
		app.Registry.ConfigureAll(policies)
	}

	for _, entityType := range app.Registry.EntityTypes() {
		p, _ := app.Registry.Policy(entityType)
		limit := "-"
		if p.HistoryLimit != nil {
			limit = fmt.Sprint(*p.HistoryLimit)
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%s\t%t\t%s\t%s\n",
			entityType, p.AuditEnabled, p.AuditCreations, limit, p.CleanupOnLimit,
			strings.Join(p.IncludeOnly, ","), strings.Join(p.Exclude, ","))
	}
	return tw.Flush()
}
