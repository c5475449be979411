package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/auth"
	"github.com/platinummonkey/auditable/pkg/middleware"
	"github.com/platinummonkey/auditable/pkg/storage/memory"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func str(s string) *string { return &s }

func newTestServer(t *testing.T, opts ...Option) (*Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	registry := audit.NewRegistry(store)
	registry.Configure("user", audit.Policy{AuditEnabled: true, HistoryLimit: audit.Limit(10)})
	registry.Configure("post", audit.DefaultPolicy())

	ctx := context.Background()
	require.NoError(t, store.InsertRecords(ctx, "user", []audit.Record{
		{EntityID: "1", Field: "name", OldValue: str("ann"), NewValue: str("anne"), ActorID: str("7"), CreatedAt: base, UpdatedAt: base},
		{EntityID: "2", Field: "name", OldValue: nil, NewValue: str("bob"), CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
		{EntityID: "1", Field: "active", OldValue: str("1"), NewValue: str("0"), CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
	}))

	log, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(log)}, opts...)
	return NewServer(registry, opts...), store
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeHistory(t *testing.T, rec *httptest.ResponseRecorder) HistoryResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListEntityTypes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/entity-types")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EntityTypesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.EntityTypes, 2)
	assert.Equal(t, "post", resp.EntityTypes[0].Type)
	assert.Equal(t, "user", resp.EntityTypes[1].Type)
	require.NotNil(t, resp.EntityTypes[1].Policy.HistoryLimit)
	assert.Equal(t, 10, *resp.EntityTypes[1].Policy.HistoryLimit)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTypeHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := decodeHistory(t, get(t, srv, "/v1/history/user"))
	assert.Equal(t, "user", resp.EntityType)
	assert.Equal(t, "desc", resp.Order)
	require.Equal(t, 3, resp.Count)
	assert.Equal(t, "active", resp.Records[0].Field)
	assert.Equal(t, "name", resp.Records[2].Field)

	resp = decodeHistory(t, get(t, srv, "/v1/history/user?order=asc&limit=2"))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "1", resp.Records[0].EntityID)
	assert.Equal(t, "2", resp.Records[1].EntityID)
}

func TestEntityHistory(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := decodeHistory(t, get(t, srv, "/v1/history/user/1"))
	assert.Equal(t, "1", resp.EntityID)
	require.Len(t, resp.Records, 2)
	for _, r := range resp.Records {
		assert.Equal(t, "1", r.EntityID)
	}

	resp = decodeHistory(t, get(t, srv, "/v1/history/user/99"))
	assert.Zero(t, resp.Count)
}

func TestHistory_Entries(t *testing.T) {
	srv, _ := newTestServer(t, WithPresenter(audit.Presenter{
		FieldNames:   map[string]string{"active": "Active"},
		FieldFormats: map[string]string{"active": "boolean:No|Yes"},
	}))

	resp := decodeHistory(t, get(t, srv, "/v1/history/user/1?format=entries"))
	require.Len(t, resp.Entries, 2)
	assert.Empty(t, resp.Records)
	assert.Equal(t, "Active", resp.Entries[0].FieldName)
	assert.Equal(t, "Yes", resp.Entries[0].Old)
	assert.Equal(t, "No", resp.Entries[0].New)
}

func TestHistory_ExportFormats(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv, "/v1/history/user?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID,EntityType"))

	rec = get(t, srv, "/v1/history/user?format=ndjson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)
}

func TestHistory_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path string
		msg  string
	}{
		{"/v1/history/user?limit=ten", "invalid limit: must be an integer"},
		{"/v1/history/user?limit=-1", "invalid limit: must not be negative"},
		{"/v1/history/user?order=up", `invalid order "up": must be asc or desc`},
		{"/v1/history/user?format=xml", `unsupported format "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, srv, tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
		})
	}
}

type failingHistoryStore struct {
	*memory.Store
}

func (failingHistoryStore) History(context.Context, audit.HistoryQuery) ([]audit.Record, error) {
	return nil, errors.New("replica down")
}

func TestHistory_StoreError(t *testing.T) {
	log, hook := test.NewNullLogger()
	srv := NewServer(audit.NewRegistry(failingHistoryStore{memory.NewStore()}), WithLogger(log))

	rec := get(t, srv, "/v1/history/user")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "replica down")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "history query failed" {
			logged = true
			assert.Equal(t, "user", e.Data["entity_type"])
		}
	}
	assert.True(t, logged)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/history/user", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Auth(t *testing.T) {
	tokens := auth.NewMemoryTokens()
	_, reader, err := tokens.Issue(7, "reader", []auth.Scope{auth.ScopeAuditRead}, 0)
	require.NoError(t, err)
	_, writer, err := tokens.Issue(8, "writer", []auth.Scope{auth.ScopeAuditWrite}, 0)
	require.NoError(t, err)

	srv, _ := newTestServer(t, WithTokens(tokens))

	assert.Equal(t, http.StatusUnauthorized, get(t, srv, "/v1/history/user").Code)
	assert.Equal(t, http.StatusForbidden, get(t, srv, "/v1/history/user", "Authorization", "Bearer "+writer).Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/v1/history/user", "Authorization", "Bearer "+reader).Code)
}

func TestServer_RateLimit(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Hour})
	srv, _ := newTestServer(t, WithRateLimit(limiter, time.Hour))

	assert.Equal(t, http.StatusOK, get(t, srv, "/v1/entity-types").Code)
	assert.Equal(t, http.StatusOK, get(t, srv, "/v1/entity-types").Code)

	rec := get(t, srv, "/v1/entity-types")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}
