package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SweepMetrics records retention sweep results as OpenTelemetry instruments
type SweepMetrics struct {
	removed  metric.Int64Counter
	duration metric.Float64Histogram
}

// NewSweepMetrics creates the sweep instruments on meter
func NewSweepMetrics(meter metric.Meter) (*SweepMetrics, error) {
	removed, err := meter.Int64Counter(
		"audit.sweep.records_removed",
		metric.WithDescription("Audit records removed by the retention sweep"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create records_removed counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"audit.sweep.duration",
		metric.WithDescription("Retention sweep duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep duration histogram: %w", err)
	}

	return &SweepMetrics{removed: removed, duration: duration}, nil
}

// RecordSweep records one sweep run. removed maps entity type to the
// number of records trimmed.
func (m *SweepMetrics) RecordSweep(ctx context.Context, removed map[string]int, elapsed time.Duration, err error) {
	for entityType, n := range removed {
		m.removed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("entity_type", entityType)))
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("error", err != nil)))
}
