package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

type testEntity struct {
	typeName string
	id       string
	original map[string]Value
	current  map[string]Value
	dirty    []string
	exists   bool
}

func newTestEntity(id string, fields map[string]any) *testEntity {
	return &testEntity{
		typeName: "user",
		id:       id,
		original: Values(fields),
		current:  Values(fields),
		exists:   true,
	}
}

func (e *testEntity) set(field string, v any) {
	e.current[field] = ValueOf(v)
	if !containsField(e.dirty, field) {
		e.dirty = append(e.dirty, field)
	}
}

func (e *testEntity) TypeName() string                      { return e.typeName }
func (e *testEntity) PrimaryKey() string                    { return e.id }
func (e *testEntity) FieldValues() map[string]Value         { return e.current }
func (e *testEntity) OriginalFieldValues() map[string]Value { return e.original }
func (e *testEntity) DirtyFieldKeys() []string              { return e.dirty }
func (e *testEntity) Exists() bool                          { return e.exists }

type softEntity struct {
	*testEntity
	forcing bool
}

func (e softEntity) IsForceDeleting() bool { return e.forcing }

type legacyEntity struct {
	*testEntity
	soft bool
}

func (e legacyEntity) SoftDeletes() bool { return e.soft }

type testStore struct {
	mu        sync.Mutex
	records   []Record
	nextID    RecordID
	insertErr error
	countErr  error
	deleteErr error
	inserts   int
}

func (s *testStore) InsertRecords(_ context.Context, _ string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserts++
	for _, r := range records {
		s.nextID++
		r.ID = s.nextID
		s.records = append(s.records, r)
	}
	return nil
}

func (s *testStore) CountRecords(_ context.Context, entityType, entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.forEntity(entityType, entityID)), nil
}

func (s *testStore) OldestRecords(_ context.Context, entityType, entityID string, n int) ([]RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []RecordID
	for _, r := range s.forEntity(entityType, entityID) {
		if len(ids) == n {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *testStore) DeleteRecords(_ context.Context, ids []RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	kept := s.records[:0]
	for _, r := range s.records {
		drop := false
		for _, id := range ids {
			if r.ID == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

func (s *testStore) History(_ context.Context, q HistoryQuery) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.EntityType == q.EntityType && (q.EntityID == "" || r.EntityID == q.EntityID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Order == OrderAsc {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *testStore) EntitiesOverLimit(_ context.Context, entityType string, limit int) ([]EntityCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, r := range s.records {
		if r.EntityType == entityType {
			counts[r.EntityID]++
		}
	}
	var out []EntityCount
	for id, n := range counts {
		if n > limit {
			out = append(out, EntityCount{EntityID: id, Count: n})
		}
	}
	return out, nil
}

func (s *testStore) forEntity(entityType, entityID string) []Record {
	var out []Record
	for _, r := range s.records {
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}

func (s *testStore) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// seed inserts n records for entity, one second apart starting at base
func (s *testStore) seed(entityType, entityID string, n int, base time.Time) {
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		_ = s.InsertRecords(context.Background(), entityType, []Record{{
			EntityType: entityType,
			EntityID:   entityID,
			Field:      "seed",
			CreatedAt:  at,
			UpdatedAt:  at,
		}})
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
