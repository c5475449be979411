package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestEngine(p Policy, store Store, opts ...Option) *Engine {
	opts = append([]Option{WithClock(fixedClock(testNow))}, opts...)
	return NewEngine("user", p, store, opts...)
}

func saveCycle(t *testing.T, e *Engine, ent Entity) error {
	t.Helper()
	c := e.OnPreSave(context.Background(), ent)
	require.NotNil(t, c)
	return e.OnPostSave(context.Background(), c)
}

func TestEngine_StatusScenario(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(DefaultPolicy(), store)

	ent := newTestEntity("1", map[string]any{"name": "A", "status": "active"})
	ent.set("status", "inactive")
	ent.set("name", "A")

	require.NoError(t, saveCycle(t, e, ent))

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "status", records[0].Field)
	assert.Equal(t, "active", *records[0].OldValue)
	assert.Equal(t, "inactive", *records[0].NewValue)
	assert.Equal(t, testNow, records[0].CreatedAt)
}

func TestEngine_ExcludedFieldFiltered(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(Policy{AuditEnabled: true, Exclude: []string{"password"}}, store)

	ent := newTestEntity("1", map[string]any{"email": "a@x.io", "password": "p1"})
	ent.set("password", "p2")
	ent.set("email", "b@x.io")

	c := e.OnPreSave(context.Background(), ent)
	changes := Diff(c.before, c.after, c.dirty)
	assert.Len(t, changes, 2, "diff still sees the excluded field")

	require.NoError(t, e.OnPostSave(context.Background(), c))
	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "email", records[0].Field)
}

func TestEngine_DisabledEngineRecordsNothing(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(Policy{AuditEnabled: false, AuditCreations: true}, store)
	ctx := context.Background()

	ent := newTestEntity("1", map[string]any{"name": "A", CreatedAtField: testNow})
	ent.set("name", "B")

	c := e.OnPreSave(ctx, ent)
	assert.False(t, c.Enabled())
	require.NoError(t, e.OnPostSave(ctx, c))
	require.NoError(t, e.OnPostCreate(ctx, ent))
	require.NoError(t, e.OnViewed(ctx, ent))
	require.NoError(t, e.Delete(ctx, softEntity{testEntity: ent}))

	assert.Empty(t, store.all())
}

func TestEngine_InsertCycleSkipsPostSave(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(DefaultPolicy(), store)

	ent := newTestEntity("1", map[string]any{})
	ent.exists = false
	ent.set("name", "A")

	require.NoError(t, saveCycle(t, e, ent))
	assert.Empty(t, store.all())
}

func TestEngine_DisableFieldTemporarily(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(DefaultPolicy(), store)

	ent := newTestEntity("1", map[string]any{"name": "A", "email": "a", "token": "t"})
	ent.set("name", "B")
	ent.set("email", "b")
	ent.set("token", "u")

	wrapped := DisableFieldTemporarily(ent, "token")
	wrapped = DisableFieldTemporarily(wrapped, []string{"email", "token"}...)
	assert.Equal(t, []string{"token", "email"}, DisabledFields(wrapped))

	require.NoError(t, saveCycle(t, e, wrapped))
	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "name", records[0].Field)

	assert.Empty(t, e.Policy().Exclude, "engine policy must not change")

	require.NoError(t, saveCycle(t, e, ent))
	assert.Len(t, store.all(), 4, "unwrapped entity audits every field")
}

func TestEngine_OnPostCreate(t *testing.T) {
	ent := newTestEntity("1", map[string]any{CreatedAtField: testNow})

	t.Run("disabled", func(t *testing.T) {
		store := &testStore{}
		e := newTestEngine(Policy{AuditEnabled: true, AuditCreations: false}, store)
		require.NoError(t, e.OnPostCreate(context.Background(), ent))
		assert.Empty(t, store.all())
	})

	t.Run("enabled", func(t *testing.T) {
		store := &testStore{}
		e := newTestEngine(Policy{AuditEnabled: true, AuditCreations: true}, store)
		require.NoError(t, e.OnPostCreate(context.Background(), ent))

		records := store.all()
		require.Len(t, records, 1)
		assert.Equal(t, CreatedAtField, records[0].Field)
		assert.Nil(t, records[0].OldValue)
		assert.Equal(t, Time(testNow).String(), *records[0].NewValue)
	})
}

func TestEngine_OnViewedNotDeduplicated(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(DefaultPolicy(), store)
	ent := newTestEntity("1", map[string]any{CreatedAtField: testNow})

	require.NoError(t, e.OnViewed(context.Background(), ent))
	require.NoError(t, e.OnViewed(context.Background(), ent))

	records := store.all()
	require.Len(t, records, 2)
	assert.Equal(t, ShowedAtField, records[0].Field)
	assert.NotEqual(t, records[0].ID, records[1].ID)
	assert.Equal(t, 2, store.inserts)
}

func TestEngine_Delete(t *testing.T) {
	deletedAt := testNow.Add(time.Hour)

	tests := []struct {
		name   string
		entity func(*testEntity) Entity
		policy Policy
		want   int
	}{
		{"soft delete", func(e *testEntity) Entity { return softEntity{testEntity: e} }, DefaultPolicy(), 1},
		{"force delete", func(e *testEntity) Entity { return softEntity{testEntity: e, forcing: true} }, DefaultPolicy(), 0},
		{"legacy soft delete", func(e *testEntity) Entity { return legacyEntity{testEntity: e, soft: true} }, DefaultPolicy(), 1},
		{"hard delete", func(e *testEntity) Entity { return e }, DefaultPolicy(), 0},
		{"deleted_at excluded", func(e *testEntity) Entity { return softEntity{testEntity: e} },
			Policy{AuditEnabled: true, Exclude: []string{DeletedAtField}}, 0},
		{"deleted_at outside include list", func(e *testEntity) Entity { return softEntity{testEntity: e} },
			Policy{AuditEnabled: true, IncludeOnly: []string{"name"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &testStore{}
			e := newTestEngine(tt.policy, store)
			ent := newTestEntity("1", map[string]any{"name": "A", DeletedAtField: deletedAt})

			require.NoError(t, e.Delete(context.Background(), tt.entity(ent)))

			records := store.all()
			require.Len(t, records, tt.want)
			if tt.want == 1 {
				assert.Equal(t, DeletedAtField, records[0].Field)
				assert.Equal(t, Time(deletedAt).String(), *records[0].NewValue)
			}
		})
	}
}

func TestEngine_NilCycle(t *testing.T) {
	e := newTestEngine(DefaultPolicy(), &testStore{})
	assert.ErrorIs(t, e.OnPostSave(context.Background(), nil), ErrNilCycle)
	assert.ErrorIs(t, e.OnPostDelete(context.Background(), nil), ErrNilCycle)
}

func TestEngine_RetentionHardCap(t *testing.T) {
	store := &testStore{}
	store.seed("user", "1", 5, testNow.Add(-time.Hour))
	before := store.all()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(5)}, store, WithMetrics(m))

	ent := newTestEntity("1", map[string]any{"a": 1, "b": 1})
	ent.set("a", 2)
	ent.set("b", 2)

	require.NoError(t, saveCycle(t, e, ent))

	assert.Equal(t, before, store.all(), "existing records unchanged and nothing added")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesRejected.WithLabelValues("user")))
}

func TestEngine_RetentionRollingWindow(t *testing.T) {
	store := &testStore{}
	store.seed("user", "1", 5, testNow.Add(-time.Hour))

	m := NewMetrics(nil)
	e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(5), CleanupOnLimit: true}, store, WithMetrics(m))

	ent := newTestEntity("1", map[string]any{"a": 1, "b": 1})
	ent.set("a", 2)
	ent.set("b", 2)

	require.NoError(t, saveCycle(t, e, ent))

	records := store.all()
	assert.LessOrEqual(t, len(records), 5)
	for _, r := range records {
		assert.NotContains(t, []RecordID{1, 2}, r.ID, "two oldest records evicted")
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsEvicted.WithLabelValues("user")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsWritten.WithLabelValues("user", string(EventPostSave))))
}

func TestEngine_RetentionIgnoresOtherEntities(t *testing.T) {
	store := &testStore{}
	store.seed("user", "2", 5, testNow)
	e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(5)}, store)

	ent := newTestEntity("1", map[string]any{"a": 1})
	ent.set("a", 2)
	require.NoError(t, saveCycle(t, e, ent))

	assert.Len(t, store.all(), 6)
}

func TestEngine_StorageErrorsPropagate(t *testing.T) {
	boom := errors.New("disk full")
	ctx := context.Background()

	t.Run("insert", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		m := NewMetrics(nil)
		e := newTestEngine(DefaultPolicy(), &testStore{insertErr: boom}, WithLogger(logger), WithMetrics(m))

		ent := newTestEntity("1", map[string]any{"a": 1, CreatedAtField: testNow})
		ent.set("a", 2)

		assert.ErrorIs(t, saveCycle(t, e, ent), boom)
		assert.ErrorIs(t, e.OnViewed(ctx, ent), boom)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.StorageErrors.WithLabelValues("user", "insert")))
		assert.NotEmpty(t, hook.Entries)
	})

	t.Run("count", func(t *testing.T) {
		e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(1)}, &testStore{countErr: boom})
		ent := newTestEntity("1", map[string]any{"a": 1})
		ent.set("a", 2)
		assert.ErrorIs(t, saveCycle(t, e, ent), boom)
	})

	t.Run("evict aborts insert", func(t *testing.T) {
		store := &testStore{}
		store.seed("user", "1", 1, testNow)
		store.deleteErr = boom
		e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(1), CleanupOnLimit: true}, store)

		ent := newTestEntity("1", map[string]any{"a": 1})
		ent.set("a", 2)
		assert.ErrorIs(t, saveCycle(t, e, ent), boom)
		assert.Len(t, store.all(), 1)
	})
}

func TestEngine_ActorRecorded(t *testing.T) {
	store := &testStore{}
	resolver := NewChainResolver(nil, provider("static", "u-1", true, nil))
	e := newTestEngine(DefaultPolicy(), store, WithActorResolver(resolver))

	ent := newTestEntity("1", map[string]any{CreatedAtField: testNow})
	require.NoError(t, e.OnViewed(context.Background(), ent))

	records := store.all()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ActorID)
	assert.Equal(t, "u-1", *records[0].ActorID)
}

func TestEngine_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	e := newTestEngine(DefaultPolicy(), &testStore{}, WithTracerProvider(tp))
	ent := newTestEntity("1", map[string]any{"a": 1})
	ent.set("a", 2)

	require.NoError(t, saveCycle(t, e, ent))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "audit.post_save", spans[0].Name())
}

func TestEngine_LoadedStringsAgainstTypedValues(t *testing.T) {
	store := &testStore{}
	e := newTestEngine(DefaultPolicy(), store)

	ent := newTestEntity("1", map[string]any{"age": "30", "status": "active"})
	ent.set("age", 30)
	ent.set("status", statusCode(1))

	require.NoError(t, saveCycle(t, e, ent))
	assert.Empty(t, store.all())
}

type evictingStore struct {
	*testStore
	evicted map[string]int
}

func (s *evictingStore) EvictRecords(ctx context.Context, entityType, entityID string, ids []RecordID) error {
	s.evicted[entityType+"/"+entityID] += len(ids)
	return s.testStore.DeleteRecords(ctx, ids)
}

func TestEngine_EvictionUsesEvictor(t *testing.T) {
	store := &evictingStore{testStore: &testStore{}, evicted: map[string]int{}}
	store.seed("user", "1", 2, testNow.Add(-time.Hour))
	e := newTestEngine(Policy{AuditEnabled: true, HistoryLimit: Limit(2), CleanupOnLimit: true}, store)

	ent := newTestEntity("1", map[string]any{"name": "A"})
	ent.set("name", "B")
	require.NoError(t, saveCycle(t, e, ent))

	assert.Equal(t, map[string]int{"user/1": 1}, store.evicted)
	assert.Len(t, store.all(), 2)
}
