package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/sirupsen/logrus"
)

// App carries what commands operate on
type App struct {
	Registry *audit.Registry
	Out      io.Writer
	Log      logrus.FieldLogger
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, app *App, args []string) error
	Subcommands map[string]*Command
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "audit-cli",
		Description: "Inspect and maintain audit history",
		Subcommands: make(map[string]*Command),
	}

	root.Subcommands["history"] = newHistoryCommand()
	root.Subcommands["prune"] = newPruneCommand()
	root.Subcommands["policies"] = newPoliciesCommand()

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, app *App, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		c.usage(app.Out)
		return nil
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, app, args[1:])
	}
	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(w, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
