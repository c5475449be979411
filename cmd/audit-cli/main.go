package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/cli"
	"github.com/platinummonkey/auditable/pkg/config"
	"github.com/platinummonkey/auditable/pkg/observability"
	"github.com/platinummonkey/auditable/pkg/storage"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run reads the same AUDIT_* environment as auditd, so the CLI works
// against the daemon's store and policies.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	level := cfg.Observability.LogLevel
	if level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	log := observability.NewLogger(level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	registry := audit.NewRegistry(backend.Store, audit.WithLogger(log))
	if cfg.Audit.PolicyFile != "" {
		policies, err := config.LoadPolicies(cfg.Audit.PolicyFile)
		if err != nil {
			return err
		}
		registry.ConfigureAll(policies)
	}

	app := &cli.App{Registry: registry, Out: os.Stdout, Log: log}
	return cli.NewRootCommand().Execute(ctx, app, os.Args[1:])
}
