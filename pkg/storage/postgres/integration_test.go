//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresContainer starts a throwaway PostgreSQL and returns a store on it
func setupPostgresContainer(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("audit_test"),
		tcpostgres.WithUsername("audit"),
		tcpostgres.WithPassword("audit_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(ctx, NewConnectionManagerFromDB(db))
	require.NoError(t, err)
	return store
}

func TestIntegration_RollingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := setupPostgresContainer(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		v := "seed"
		require.NoError(t, store.InsertRecords(ctx, "user", []audit.Record{
			{EntityID: "1", Field: "seed", NewValue: &v, CreatedAt: at, UpdatedAt: at},
		}))
	}
	oldest, err := store.OldestRecords(ctx, "user", "1", 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)

	reg := audit.NewRegistry(store)
	reg.Configure("user", audit.Policy{AuditEnabled: true, HistoryLimit: audit.Limit(5), CleanupOnLimit: true})
	engine, err := reg.Engine("user")
	require.NoError(t, err)

	ent := &fakeEntity{
		id:       "1",
		original: map[string]audit.Value{"status": audit.String("active"), "name": audit.String("A")},
		current:  map[string]audit.Value{"status": audit.String("inactive"), "name": audit.String("B")},
	}
	ent2 := &twoFieldEntity{fakeEntity: ent}
	require.NoError(t, engine.OnPostSave(ctx, engine.OnPreSave(ctx, ent2)))

	n, err := store.CountRecords(ctx, "user", "1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	history, err := reg.EntityHistory(ctx, "user", "1", 0, audit.OrderAsc)
	require.NoError(t, err)
	for _, r := range history {
		assert.NotContains(t, oldest, r.ID)
	}

	over, err := store.EntitiesOverLimit(ctx, "user", 4)
	require.NoError(t, err)
	assert.Equal(t, []audit.EntityCount{{EntityID: "1", Count: 5}}, over)
}

type twoFieldEntity struct{ *fakeEntity }

func (e *twoFieldEntity) DirtyFieldKeys() []string { return []string{"status", "name"} }
