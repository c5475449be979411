package observability

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	log, hook := test.NewNullLogger()

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, log)
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.Equal(t, "opentelemetry disabled", hook.LastEntry().Message)

	assert.NoError(t, providers.Shutdown(context.Background()))
	assert.Equal(t, otel.GetTracerProvider(), providers.Tracer())
}

func TestInitOTel_Enabled(t *testing.T) {
	log, _ := test.NewNullLogger()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// exporters connect lazily so no collector is needed
	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       "127.0.0.1:4317",
		ServiceName:    "auditd-test",
		ServiceVersion: "test",
		Insecure:       true,
	}, log)
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.Equal(t, providers.TracerProvider, providers.Tracer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = providers.Shutdown(ctx)
}

func TestWithTraceContext(t *testing.T) {
	logger, hook := test.NewNullLogger()

	WithTraceContext(context.Background(), logger).Info("no span")
	assert.NotContains(t, hook.LastEntry().Data, "trace_id")

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithTraceContext(ctx, logger).Info("with span")
	entry := hook.LastEntry()
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span_id"])
	assert.Equal(t, logrus.InfoLevel, entry.Level)
}
