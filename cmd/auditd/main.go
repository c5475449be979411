package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/auditable/pkg/api"
	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/auth"
	"github.com/platinummonkey/auditable/pkg/config"
	"github.com/platinummonkey/auditable/pkg/middleware"
	"github.com/platinummonkey/auditable/pkg/observability"
	"github.com/platinummonkey/auditable/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

var version = "dev"

var (
	sweepOnce    = flag.Bool("sweep-once", false, "Run the retention sweep once and exit")
	sweepTimeout = flag.Duration("sweep-timeout", 10*time.Minute, "Upper bound for one retention sweep")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("auditd stopped with error")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}

	backend, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	log.WithField("type", cfg.Storage.Type).Info("storage initialized")

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serverMetrics := observability.NewMetrics(promRegistry)
	auditMetrics := audit.NewMetrics(promRegistry)

	var tokens auth.TokenLookup
	if len(cfg.Server.APITokens) > 0 {
		mem, err := loadTokens(cfg.Server.APITokens)
		if err != nil {
			backend.Close()
			return err
		}
		tokens = mem
	}

	registry := audit.NewRegistry(backend.Store,
		audit.WithLogger(log),
		audit.WithActorResolver(auth.NewActorResolver(log, tokens, cfg.Audit.SystemActor)),
		audit.WithMetrics(auditMetrics),
		audit.WithTracerProvider(providers.Tracer()),
	)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if err := loadPolicies(watchCtx, cfg.Audit, registry, log); err != nil {
		backend.Close()
		return err
	}

	sweepMetrics, err := observability.NewSweepMetrics(otel.GetMeterProvider().Meter("auditd"))
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create sweep metrics: %w", err)
	}
	job := &sweepJob{
		sweeper: audit.NewSweeper(registry, log, auditMetrics),
		runs:    serverMetrics.SweepRunsTotal,
		otel:    sweepMetrics,
		log:     log,
		timeout: *sweepTimeout,
	}

	if *sweepOnce {
		_, err := job.run(ctx)
		return errors.Join(err, backend.Close(), providers.Shutdown(ctx))
	}

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log))))
	if cfg.Audit.SweepSchedule != "" {
		if _, err := scheduler.AddJob(cfg.Audit.SweepSchedule, job); err != nil {
			backend.Close()
			return fmt.Errorf("failed to schedule retention sweep: %w", err)
		}
		log.WithField("schedule", cfg.Audit.SweepSchedule).Info("retention sweep scheduled")
	}
	scheduler.Start()

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(serverMetrics))

	apiOpts := []api.Option{api.WithLogger(log)}
	if tokens != nil {
		apiOpts = append(apiOpts, api.WithTokens(tokens))
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(newLimiter(ctx, cfg.Server, backend), time.Minute))
	}
	api.NewServer(registry, apiOpts...).RegisterRoutes(router)

	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(backend.DB, backend.Redis, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(router, promRegistry)
		go recordDBStats(ctx, serverMetrics, backend)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(router, "auditd"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(log, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("storage", func(context.Context) error { return backend.Close() })
	shutdown.Register("opentelemetry", providers.Shutdown)
	shutdown.Register("policy watcher", func(context.Context) error {
		stopWatch()
		return nil
	})
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return fmt.Errorf("sweep still running: %w", ctx.Err())
		}
	})

	serverErr := make(chan error, 1)
	go func() {
		defer observability.RecoverPanic(log, "http server")
		log.WithFields(logrus.Fields{
			"addr":    server.Addr,
			"version": version,
		}).Info("auditd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			cancel()
		}
	}()

	shutdownErr := shutdown.WaitForShutdown(ctx)
	select {
	case err := <-serverErr:
		return errors.Join(fmt.Errorf("http server failed: %w", err), shutdownErr)
	default:
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	log.Info("auditd stopped")
	return nil
}

// loadPolicies applies the policy file, and keeps watching it when enabled
func loadPolicies(ctx context.Context, cfg config.AuditConfig, registry *audit.Registry, log logrus.FieldLogger) error {
	if cfg.PolicyFile == "" {
		log.Warn("no policy file configured; every entity type is unconfigured")
		return nil
	}

	if !cfg.WatchPolicies {
		policies, err := config.LoadPolicies(cfg.PolicyFile)
		if err != nil {
			return err
		}
		registry.ConfigureAll(policies)
		log.WithField("entity_types", len(policies)).Info("audit policies loaded")
		return nil
	}

	watcher, err := config.NewPolicyWatcher(cfg.PolicyFile, registry, log)
	if err != nil {
		return err
	}
	if err := watcher.Reload(); err != nil {
		return err
	}
	go func() {
		defer observability.RecoverPanic(log, "policy watcher")
		if err := watcher.Run(ctx); err != nil {
			log.WithError(err).Error("policy watcher stopped")
		}
	}()
	return nil
}

// loadTokens registers the configured API tokens with read access. Token
// owners are numbered in configuration order.
func loadTokens(raw []string) (*auth.MemoryTokens, error) {
	tokens := auth.NewMemoryTokens()
	for i, token := range raw {
		if _, err := tokens.Register(token, int64(i+1), fmt.Sprintf("config-%d", i+1), []auth.Scope{auth.ScopeAuditRead}); err != nil {
			return nil, fmt.Errorf("invalid API token #%d: %w", i+1, err)
		}
	}
	return tokens, nil
}

// newLimiter shares limits through redis when the backend has a client
func newLimiter(ctx context.Context, cfg config.ServerConfig, backend *storage.Backend) middleware.Limiter {
	limits := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.RateLimitBurst,
	}
	if backend.Redis != nil {
		return middleware.NewRedisLimiter(backend.Redis, limits, "")
	}
	limiter := middleware.NewMemoryLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}

func recordDBStats(ctx context.Context, metrics *observability.Metrics, backend *storage.Backend) {
	if backend.DB == nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.RecordDBStats(backend.DB)
		case <-ctx.Done():
			return
		}
	}
}
