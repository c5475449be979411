// Package observability provides the logging, metrics, tracing, health and
// shutdown plumbing of the audit daemon.
//
// # Logging
//
// Loggers are logrus loggers with a JSON formatter:
//
//	log := observability.NewLogger(observability.ParseLevel("info"), os.Stdout)
//	ctx = observability.WithLogger(ctx, log)
//	observability.FromContext(ctx).Info("request handled")
//
// FromContext attaches request_id and user_id from the context keys set by
// pkg/contextkeys.
//
// # Metrics
//
// NewMetrics registers the daemon's Prometheus collectors: HTTP request
// counts by mux route template, SQL pool gauges and sweep runs. Engine
// metrics are registered separately by audit.NewMetrics. SweepMetrics
// mirrors sweep results to the OpenTelemetry meter installed by InitOTel.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(backend.DB, backend.Redis, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// Readiness fails when the database is unreachable and degrades when redis is.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:      true,
//		Endpoint:     "otel-collector:4317",
//		ServiceName:  "auditd",
//	}, log)
//	defer providers.Shutdown(ctx)
package observability
