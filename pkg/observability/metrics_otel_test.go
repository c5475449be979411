package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestSweepMetrics_RecordSweep(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewSweepMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSweep(ctx, map[string]int{"user": 3, "order": 2}, 150*time.Millisecond, nil)
	m.RecordSweep(ctx, map[string]int{"user": 1}, 10*time.Millisecond, errors.New("boom"))

	metrics := collect(t, reader)

	removed, ok := metrics["audit.sweep.records_removed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	totals := map[string]int64{}
	for _, dp := range removed.DataPoints {
		v, _ := dp.Attributes.Value("entity_type")
		totals[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"user": 4, "order": 2}, totals)

	duration, ok := metrics["audit.sweep.duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, duration.DataPoints, 2)
}
