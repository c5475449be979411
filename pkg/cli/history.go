package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
)

const formatText = "text"

func newHistoryCommand() *Command {
	return &Command{
		Name:        "history",
		Description: "Show the audit history of an entity type or entity",
		Run:         runHistory,
	}
}

func runHistory(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet("history", app.Out)
	entityType := fs.String("type", "", "Entity type (required)")
	entityID := fs.String("id", "", "Restrict to one entity")
	limit := fs.Int("limit", audit.DefaultHistoryLimit, "Maximum number of records")
	order := fs.String("order", string(audit.OrderDesc), "Sort order by update time: asc or desc")
	format := fs.String("format", formatText, "Output format: text, json, csv or ndjson")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *entityType == "" {
		return fmt.Errorf("-type is required")
	}

	var (
		records []audit.Record
		err     error
	)
	sortOrder := audit.ParseSortOrder(*order)
	if *entityID != "" {
		records, err = app.Registry.EntityHistory(ctx, *entityType, *entityID, *limit, sortOrder)
	} else {
		records, err = app.Registry.QueryHistory(ctx, *entityType, *limit, sortOrder)
	}
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if *format == formatText {
		return writeEntries(app.Out, audit.Presenter{}.PresentAll(records))
	}

	data, err := audit.Export(records, audit.ExportFormat(*format))
	if err != nil {
		return err
	}
	_, err = app.Out.Write(data)
	return err
}

func writeEntries(w io.Writer, entries []audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tENTITY\tFIELD\tOLD\tNEW\tACTOR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.At.UTC().Format(time.RFC3339), e.EntityName, e.FieldName, e.Old, e.New, e.Actor)
	}
	return tw.Flush()
}
