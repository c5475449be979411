package audit

import (
	"context"
	"fmt"
)

// Decision is the retention outcome for one incoming batch
type Decision struct {
	Allow bool
	Evict []RecordID
}

// Admit decides whether incoming records may be written for an entity that
// already holds existing records. oldestFirst lists existing record IDs in
// creation order and is only consulted when eviction is needed.
func Admit(incoming int, p Policy, existing int, oldestFirst []RecordID) Decision {
	if p.HistoryLimit == nil || existing < *p.HistoryLimit {
		return Decision{Allow: true}
	}
	if !p.CleanupOnLimit {
		return Decision{Allow: false}
	}
	n := incoming
	if n > len(oldestFirst) {
		n = len(oldestFirst)
	}
	evict := make([]RecordID, n)
	copy(evict, oldestFirst[:n])
	return Decision{Allow: true, Evict: evict}
}

// Retention applies Admit against a Store. The count and the eviction are
// read-then-act; concurrent cycles for one entity can overshoot the limit.
type Retention struct {
	store Store
}

// NewRetention creates a retention manager over store
func NewRetention(store Store) *Retention {
	return &Retention{store: store}
}

// Check counts the entity's records and, when the limit is reached with
// cleanup enabled, loads the oldest candidates for eviction.
func (r *Retention) Check(ctx context.Context, entityType, entityID string, incoming int, p Policy) (Decision, error) {
	if p.HistoryLimit == nil {
		return Decision{Allow: true}, nil
	}

	existing, err := r.store.CountRecords(ctx, entityType, entityID)
	if err != nil {
		return Decision{}, err
	}

	var oldest []RecordID
	if existing >= *p.HistoryLimit && p.CleanupOnLimit && incoming > 0 {
		oldest, err = r.store.OldestRecords(ctx, entityType, entityID, incoming)
		if err != nil {
			return Decision{}, err
		}
	}

	return Admit(incoming, p, existing, oldest), nil
}

// Trim deletes the oldest records of one entity until at most limit remain.
// It returns the number of records removed.
func (r *Retention) Trim(ctx context.Context, entityType, entityID string, limit int) (int, error) {
	existing, err := r.store.CountRecords(ctx, entityType, entityID)
	if err != nil {
		return 0, err
	}
	excess := existing - limit
	if excess <= 0 {
		return 0, nil
	}

	ids, err := r.store.OldestRecords(ctx, entityType, entityID, excess)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := evictRecords(ctx, r.store, entityType, entityID, ids); err != nil {
		return 0, fmt.Errorf("failed to trim history of %s %s: %w", entityType, entityID, err)
	}
	return len(ids), nil
}
