package audit

import (
	"context"
)

// Store is the durable storage collaborator the engine writes audit rows to
// and reads them from.
type Store interface {
	// InsertRecords persists one batch atomically. Implementations assign IDs.
	InsertRecords(ctx context.Context, entityType string, records []Record) error

	// CountRecords returns the number of records kept for one entity
	CountRecords(ctx context.Context, entityType, entityID string) (int, error)

	// OldestRecords returns up to n record IDs of one entity, oldest first
	OldestRecords(ctx context.Context, entityType, entityID string, n int) ([]RecordID, error)

	// DeleteRecords removes the given records
	DeleteRecords(ctx context.Context, ids []RecordID) error

	// History reads records ordered by updated_at
	History(ctx context.Context, q HistoryQuery) ([]Record, error)
}

// Pruner is implemented by stores able to list entities whose history
// exceeds a limit. It backs the retention sweep.
type Pruner interface {
	EntitiesOverLimit(ctx context.Context, entityType string, limit int) ([]EntityCount, error)
}

// Evictor is implemented by stores that can delete records of a known
// entity more cheaply than by ID alone, for example by invalidating only
// that entity's cached count. Retention eviction prefers it over
// DeleteRecords.
type Evictor interface {
	EvictRecords(ctx context.Context, entityType, entityID string, ids []RecordID) error
}

// evictRecords deletes ids belonging to one entity through Evictor when the
// store has it
func evictRecords(ctx context.Context, store Store, entityType, entityID string, ids []RecordID) error {
	if ev, ok := store.(Evictor); ok {
		return ev.EvictRecords(ctx, entityType, entityID, ids)
	}
	return store.DeleteRecords(ctx, ids)
}

// EntityCount is the number of records kept for one entity
type EntityCount struct {
	EntityID string
	Count    int
}

// HistoryQuery selects records for history reads
type HistoryQuery struct {
	EntityType string
	// EntityID restricts the query to one entity when non-empty
	EntityID string
	Limit    int
	Order    SortOrder
}

// Normalize applies the default limit and order
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Order != OrderAsc {
		q.Order = OrderDesc
	}
	return q
}
