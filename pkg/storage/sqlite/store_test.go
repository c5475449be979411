package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	at := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, s.InsertRecords(ctx, "user", []audit.Record{
		{EntityID: "1", Field: "status", OldValue: strPtr("active"), NewValue: strPtr("inactive"), ActorID: strPtr("42"), CreatedAt: at, UpdatedAt: at},
		{EntityID: "1", Field: "showed_at", NewValue: strPtr("x"), CreatedAt: at.Add(time.Second), UpdatedAt: at.Add(time.Second)},
	}))

	records, err := s.History(ctx, audit.HistoryQuery{EntityType: "user", EntityID: "1", Order: audit.OrderAsc})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, audit.RecordID(1), records[0].ID)
	assert.Equal(t, "user", records[0].EntityType)
	assert.Equal(t, "active", *records[0].OldValue)
	assert.Equal(t, "inactive", *records[0].NewValue)
	assert.Equal(t, "42", *records[0].ActorID)
	assert.True(t, at.Equal(records[0].UpdatedAt))
	assert.Nil(t, records[1].OldValue)
	assert.Nil(t, records[1].ActorID)

	records, err = s.History(ctx, audit.HistoryQuery{EntityType: "user", Limit: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "showed_at", records[0].Field)
}

func TestStore_Retention(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	now := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, s.InsertRecords(ctx, "user", []audit.Record{{EntityID: "1", Field: "f", CreatedAt: now, UpdatedAt: now}}))
	}
	require.NoError(t, s.InsertRecords(ctx, "user", []audit.Record{{EntityID: "2", Field: "f", CreatedAt: now, UpdatedAt: now}}))

	n, err := s.CountRecords(ctx, "user", "1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	ids, err := s.OldestRecords(ctx, "user", "1", 2)
	require.NoError(t, err)
	assert.Equal(t, []audit.RecordID{1, 2}, ids)

	over, err := s.EntitiesOverLimit(ctx, "user", 3)
	require.NoError(t, err)
	assert.Equal(t, []audit.EntityCount{{EntityID: "1", Count: 6}}, over)

	require.NoError(t, s.DeleteRecords(ctx, ids))
	n, err = s.CountRecords(ctx, "user", "1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	now := time.Now()
	for i := 0; i < 7; i++ {
		require.NoError(t, s.InsertRecords(ctx, "order", []audit.Record{{EntityID: "9", Field: "f", CreatedAt: now, UpdatedAt: now}}))
	}

	reg := audit.NewRegistry(s)
	reg.Configure("order", audit.Policy{AuditEnabled: true, HistoryLimit: audit.Limit(3), CleanupOnLimit: true})

	result, err := audit.NewSweeper(reg, nil, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Removed["order"])

	ids, err := s.OldestRecords(ctx, "order", "9", 10)
	require.NoError(t, err)
	assert.Equal(t, []audit.RecordID{5, 6, 7}, ids)
}
