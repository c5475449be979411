package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/auditable/pkg/audit"
)

func newPruneCommand() *Command {
	return &Command{
		Name:        "prune",
		Description: "Trim histories over their history limit",
		Run:         runPrune,
	}
}

func runPrune(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("prune", app.Out)
	types := fs.String("type", "", "Comma separated entity types (default: all configured)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var entityTypes []string
	for _, t := range strings.Split(*types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			entityTypes = append(entityTypes, t)
		}
	}

	result, err := audit.NewSweeper(app.Registry, app.Log, nil).Sweep(ctx, entityTypes...)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	names := make([]string, 0, len(result.Removed))
	for name := range result.Removed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(app.Out, "%s: removed %d\n", name, result.Removed[name])
	}
	fmt.Fprintf(app.Out, "total: removed %d\n", result.Total())
	return nil
}
