package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/platinummonkey/auditable/pkg/audit"
)

type entityKey struct {
	entityType string
	entityID   string
}

// Store is an in-process audit.Store. Records of one entity are kept in
// insertion order, so the head of each slice is the oldest record.
type Store struct {
	mu      sync.RWMutex
	nextID  audit.RecordID
	records map[entityKey][]audit.Record
	index   map[audit.RecordID]entityKey
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		records: make(map[entityKey][]audit.Record),
		index:   make(map[audit.RecordID]entityKey),
	}
}

// Clear removes every record
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[entityKey][]audit.Record)
	s.index = make(map[audit.RecordID]entityKey)
}

// InsertRecords implements audit.Store
func (s *Store) InsertRecords(_ context.Context, entityType string, records []audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.nextID++
		r.ID = s.nextID
		r.EntityType = entityType
		key := entityKey{entityType, r.EntityID}
		s.records[key] = append(s.records[key], r)
		s.index[r.ID] = key
	}
	return nil
}

// CountRecords implements audit.Store
func (s *Store) CountRecords(_ context.Context, entityType, entityID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entityKey{entityType, entityID}]), nil
}

// OldestRecords implements audit.Store
func (s *Store) OldestRecords(_ context.Context, entityType, entityID string, n int) ([]audit.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[entityKey{entityType, entityID}]
	if n > len(records) {
		n = len(records)
	}
	ids := make([]audit.RecordID, 0, n)
	for _, r := range records[:n] {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// DeleteRecords implements audit.Store. Unknown IDs are ignored.
func (s *Store) DeleteRecords(_ context.Context, ids []audit.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[audit.RecordID]struct{}, len(ids))
	touched := make(map[entityKey]struct{})
	for _, id := range ids {
		key, ok := s.index[id]
		if !ok {
			continue
		}
		drop[id] = struct{}{}
		touched[key] = struct{}{}
		delete(s.index, id)
	}

	for key := range touched {
		kept := make([]audit.Record, 0, len(s.records[key]))
		for _, r := range s.records[key] {
			if _, ok := drop[r.ID]; !ok {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(s.records, key)
			continue
		}
		s.records[key] = kept
	}
	return nil
}

// History implements audit.Store
func (s *Store) History(_ context.Context, q audit.HistoryQuery) ([]audit.Record, error) {
	q = q.Normalize()

	s.mu.RLock()
	var out []audit.Record
	for key, records := range s.records {
		if key.entityType != q.EntityType || (q.EntityID != "" && key.entityID != q.EntityID) {
			continue
		}
		out = append(out, records...)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if q.Order == audit.OrderAsc {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if q.Order == audit.OrderAsc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// EntitiesOverLimit implements audit.Pruner
func (s *Store) EntitiesOverLimit(_ context.Context, entityType string, limit int) ([]audit.EntityCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.EntityCount
	for key, records := range s.records {
		if key.entityType == entityType && len(records) > limit {
			out = append(out, audit.EntityCount{EntityID: key.entityID, Count: len(records)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}
