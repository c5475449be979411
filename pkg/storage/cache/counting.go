package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "audit:count:"

// Config configures the count cache
type Config struct {
	// L1Size is the number of counts kept in process
	L1Size int
	// TTL bounds how long a cached count is trusted, in both layers
	TTL time.Duration
}

// DefaultConfig returns sensible cache defaults
func DefaultConfig() Config {
	return Config{L1Size: 10000, TTL: 5 * time.Minute}
}

// CountingStore decorates an audit.Store with a two-level cache of
// per-entity record counts: an in-process LRU in front of redis. Inserts
// invalidate the entities they touch; deletes invalidate every count since
// record IDs do not name their entity. Retention evictions go through
// EvictRecords and only invalidate the evicted entity.
type CountingStore struct {
	audit.Store
	l1    *expirable.LRU[string, int]
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewCountingStore wraps inner. A nil redis client runs with L1 only.
func NewCountingStore(inner audit.Store, client *redis.Client, cfg Config, log logrus.FieldLogger) *CountingStore {
	if cfg.L1Size <= 0 {
		cfg.L1Size = DefaultConfig().L1Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CountingStore{
		Store: inner,
		l1:    expirable.NewLRU[string, int](cfg.L1Size, nil, cfg.TTL),
		redis: client,
		ttl:   cfg.TTL,
		log:   log,
	}
}

// NewRedisClient creates a redis client from a URL and verifies the connection
func NewRedisClient(ctx context.Context, url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db >= 0 {
		opts.DB = db
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func countKey(entityType, entityID string) string {
	return keyPrefix + entityType + ":" + entityID
}

// CountRecords serves the count from L1, then redis, then the wrapped
// store. Redis failures fall through to the store.
func (s *CountingStore) CountRecords(ctx context.Context, entityType, entityID string) (int, error) {
	key := countKey(entityType, entityID)
	if n, ok := s.l1.Get(key); ok {
		return n, nil
	}

	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Result()
		switch {
		case err == nil:
			if n, convErr := strconv.Atoi(raw); convErr == nil {
				s.l1.Add(key, n)
				return n, nil
			}
			s.redis.Del(ctx, key)
		case err != redis.Nil:
			s.log.WithError(err).Warn("redis count lookup failed")
		}
	}

	n, err := s.Store.CountRecords(ctx, entityType, entityID)
	if err != nil {
		return 0, err
	}

	s.l1.Add(key, n)
	if s.redis != nil {
		if err := s.redis.Set(ctx, key, n, s.ttl).Err(); err != nil {
			s.log.WithError(err).Warn("redis count store failed")
		}
	}
	return n, nil
}

// InsertRecords writes through and invalidates the touched entities
func (s *CountingStore) InsertRecords(ctx context.Context, entityType string, records []audit.Record) error {
	err := s.Store.InsertRecords(ctx, entityType, records)

	seen := make(map[string]struct{}, len(records))
	keys := make([]string, 0, len(records))
	for _, r := range records {
		key := countKey(entityType, r.EntityID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		s.l1.Remove(key)
	}
	if s.redis != nil && len(keys) > 0 {
		if delErr := s.redis.Del(ctx, keys...).Err(); delErr != nil {
			s.log.WithError(delErr).Warn("redis count invalidation failed")
		}
	}
	return err
}

// DeleteRecords deletes through and drops every cached count
func (s *CountingStore) DeleteRecords(ctx context.Context, ids []audit.RecordID) error {
	err := s.Store.DeleteRecords(ctx, ids)
	if len(ids) == 0 {
		return err
	}
	s.Invalidate(ctx)
	return err
}

// EvictRecords deletes records of one entity and invalidates only its count
func (s *CountingStore) EvictRecords(ctx context.Context, entityType, entityID string, ids []audit.RecordID) error {
	var err error
	if ev, ok := s.Store.(audit.Evictor); ok {
		err = ev.EvictRecords(ctx, entityType, entityID, ids)
	} else {
		err = s.Store.DeleteRecords(ctx, ids)
	}
	if len(ids) == 0 {
		return err
	}
	s.InvalidateEntity(ctx, entityType, entityID)
	return err
}

// InvalidateEntity drops the cached count of one entity in both layers
func (s *CountingStore) InvalidateEntity(ctx context.Context, entityType, entityID string) {
	key := countKey(entityType, entityID)
	s.l1.Remove(key)
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.log.WithError(err).Warn("redis count invalidation failed")
	}
}

// Invalidate drops every cached count in both layers
func (s *CountingStore) Invalidate(ctx context.Context) {
	s.l1.Purge()
	if s.redis == nil {
		return
	}

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			s.log.WithError(err).Warn("redis count scan failed")
			return
		}
		if len(keys) > 0 {
			if err := s.redis.Del(ctx, keys...).Err(); err != nil {
				s.log.WithError(err).Warn("redis count invalidation failed")
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// EntitiesOverLimit forwards to the wrapped store when it is an audit.Pruner
func (s *CountingStore) EntitiesOverLimit(ctx context.Context, entityType string, limit int) ([]audit.EntityCount, error) {
	p, ok := s.Store.(audit.Pruner)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list entities over limit", s.Store)
	}
	return p.EntitiesOverLimit(ctx, entityType, limit)
}
