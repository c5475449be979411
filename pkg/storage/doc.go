// Package storage opens the persistence backend for audit records.
//
// # Backends
//
// Three implementations of audit.Store live in subpackages:
//
//   - memory: process-local maps, for tests and single-process tools
//   - postgres: lib/pq with a primary for writes and round-robin read replicas
//   - sqlite: an embedded go-sqlite3 database
//
// Every backend also implements audit.Pruner so the retention sweeper can
// find entities over their history limit.
//
// # Count Cache
//
// Retention counts records for every saved entity. With CacheEnabled the
// store is wrapped in cache.CountingStore, an expirable LRU in front of
// redis:
//
//	backend, err := storage.Open(ctx, storage.Config{
//		Type:         storage.TypePostgres,
//		PostgresURL:  "postgres://localhost/audit?sslmode=disable",
//		CacheEnabled: true,
//		RedisURL:     "redis://localhost:6379/0",
//	}, log)
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	registry := audit.NewRegistry(backend.Store)
//
// Without a RedisURL the cache runs with the in-process layer only.
package storage
