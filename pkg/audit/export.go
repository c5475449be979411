package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ExportFormat selects how records are serialized
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson"
)

// Export serializes records in the given format
func Export(records []Record, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatJSON, "":
		return exportJSON(records)
	case ExportFormatCSV:
		return exportCSV(records)
	case ExportFormatNDJSON:
		return exportNDJSON(records)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// exportJSON exports records as an indented JSON array
func exportJSON(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// exportNDJSON exports records as newline-delimited JSON
func exportNDJSON(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports records as CSV; absent values are empty cells
func exportCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"EntityType",
		"EntityID",
		"Field",
		"OldValue",
		"NewValue",
		"ActorID",
		"CreatedAt",
		"UpdatedAt",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.FormatInt(int64(r.ID), 10),
			r.EntityType,
			r.EntityID,
			r.Field,
			derefString(r.OldValue),
			derefString(r.NewValue),
			derefString(r.ActorID),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
