package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/storage/cache"
	"github.com/platinummonkey/auditable/pkg/storage/memory"
	"github.com/platinummonkey/auditable/pkg/storage/postgres"
	"github.com/platinummonkey/auditable/pkg/storage/sqlite"
	"github.com/sirupsen/logrus"
)

// Backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Config for storage backend
type Config struct {
	Type string // "memory", "postgres", "sqlite"

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // comma separated
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// SQLite config
	SQLitePath string

	// Redis config
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Cache config
	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		SQLitePath:       "audit.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  30 * time.Second,
		RedisDB:          0,
		CacheEnabled:     false,
		CacheTTL:         5 * time.Minute,
		L1CacheSize:      10000,
	}
}

// Backend is an opened storage backend. DB and Redis are nil when the
// backend does not use them.
type Backend struct {
	Store audit.Store
	DB    *sql.DB
	Redis *redis.Client

	closers []func() error
}

// Close releases every connection the backend opened
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Open builds the backend described by cfg, optionally fronted by the
// count cache.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Backend, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	b := &Backend{}

	switch cfg.Type {
	case TypeMemory, "":
		b.Store = memory.NewStore()
	case TypePostgres:
		conns, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
			PrimaryURL:  cfg.PostgresURL,
			ReplicaURLs: postgres.ParseReplicaURLs(cfg.PostgresReplicaURLs),
			MaxConns:    cfg.PostgresMaxConns,
			MinConns:    cfg.PostgresMinConns,
			Timeout:     cfg.PostgresTimeout,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.closers = append(b.closers, conns.Close)
		if cfg.PostgresReplicaURLs != "" {
			conns.StartHealthCheckRoutine(ctx, 30*time.Second)
		}
		store, err := postgres.NewStore(ctx, conns)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Store = store
		b.DB = store.DB()
	case TypeSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store.Close)
		b.Store = store
		b.DB = store.DB()
	default:
		return nil, fmt.Errorf("invalid storage type: %s (must be memory, postgres, or sqlite)", cfg.Type)
	}

	if !cfg.CacheEnabled {
		return b, nil
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, client.Close)
	}
	b.Store = cache.NewCountingStore(b.Store, b.Redis, cache.Config{
		L1Size: cfg.L1CacheSize,
		TTL:    cfg.CacheTTL,
	}, log)

	log.WithFields(logrus.Fields{
		"backend": cfg.Type,
		"redis":   b.Redis != nil,
	}).Info("audit count cache enabled")
	return b, nil
}
