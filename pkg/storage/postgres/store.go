package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/platinummonkey/auditable/pkg/audit"
)

// recordColumns is the number of bound columns per inserted row
const recordColumns = 8

// Store implements audit.Store on PostgreSQL. Writes and retention reads go
// to the primary; history reads go to a replica.
type Store struct {
	conns *ConnectionManager
}

// NewStore creates a store and ensures the audit_records table exists
func NewStore(ctx context.Context, conns *ConnectionManager) (*Store, error) {
	if conns == nil || conns.Primary() == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{conns: conns}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_records table: %w", err)
	}
	return s, nil
}

// ensureTable creates the audit_records table if it doesn't exist
func (s *Store) ensureTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id BIGSERIAL PRIMARY KEY,
		entity_type VARCHAR(255) NOT NULL,
		entity_id VARCHAR(255) NOT NULL,
		field VARCHAR(255) NOT NULL,
		old_value TEXT,
		new_value TEXT,
		actor_id VARCHAR(255),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_entity ON audit_records(entity_type, entity_id, id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_updated_at ON audit_records(entity_type, updated_at DESC);
	`

	_, err := s.conns.Primary().ExecContext(ctx, query)
	return err
}

// InsertRecords writes the batch as a single multi-row INSERT
func (s *Store) InsertRecords(ctx context.Context, entityType string, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*recordColumns)
	for i, r := range records {
		base := i * recordColumns
		placeholders := make([]string, recordColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			entityType, r.EntityID, r.Field,
			nullString(r.OldValue), nullString(r.NewValue), nullString(r.ActorID),
			r.CreatedAt, r.UpdatedAt,
		)
	}

	query := `INSERT INTO audit_records (
		entity_type, entity_id, field, old_value, new_value, actor_id, created_at, updated_at
	) VALUES ` + strings.Join(values, ", ")

	if _, err := s.conns.Primary().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert audit records: %w", err)
	}
	return nil
}

// CountRecords implements audit.Store
func (s *Store) CountRecords(ctx context.Context, entityType, entityID string) (int, error) {
	var count int
	err := s.conns.Primary().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_records WHERE entity_type = $1 AND entity_id = $2",
		entityType, entityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// OldestRecords implements audit.Store
func (s *Store) OldestRecords(ctx context.Context, entityType, entityID string, n int) ([]audit.RecordID, error) {
	rows, err := s.conns.Primary().QueryContext(ctx,
		"SELECT id FROM audit_records WHERE entity_type = $1 AND entity_id = $2 ORDER BY id ASC LIMIT $3",
		entityType, entityID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest audit records: %w", err)
	}
	defer rows.Close()

	var ids []audit.RecordID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan audit record id: %w", err)
		}
		ids = append(ids, audit.RecordID(id))
	}
	return ids, rows.Err()
}

// DeleteRecords implements audit.Store
func (s *Store) DeleteRecords(ctx context.Context, ids []audit.RecordID) error {
	if len(ids) == 0 {
		return nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	if _, err := s.conns.Primary().ExecContext(ctx,
		"DELETE FROM audit_records WHERE id = ANY($1)", pq.Array(raw),
	); err != nil {
		return fmt.Errorf("failed to delete audit records: %w", err)
	}
	return nil
}

// History implements audit.Store
func (s *Store) History(ctx context.Context, q audit.HistoryQuery) ([]audit.Record, error) {
	q = q.Normalize()

	query := `
		SELECT id, entity_type, entity_id, field, old_value, new_value, actor_id, created_at, updated_at
		FROM audit_records
		WHERE entity_type = $1
	`
	args := []interface{}{q.EntityType}
	argPos := 2

	if q.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", argPos)
		args = append(args, q.EntityID)
		argPos++
	}

	direction := "DESC"
	if q.Order == audit.OrderAsc {
		direction = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY updated_at %s, id %s LIMIT $%d", direction, direction, argPos)
	args = append(args, q.Limit)

	rows, err := s.conns.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// EntitiesOverLimit implements audit.Pruner
func (s *Store) EntitiesOverLimit(ctx context.Context, entityType string, limit int) ([]audit.EntityCount, error) {
	rows, err := s.conns.Primary().QueryContext(ctx, `
		SELECT entity_id, COUNT(*)
		FROM audit_records
		WHERE entity_type = $1
		GROUP BY entity_id
		HAVING COUNT(*) > $2
		ORDER BY entity_id
	`, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities over limit: %w", err)
	}
	defer rows.Close()

	var out []audit.EntityCount
	for rows.Next() {
		var ec audit.EntityCount
		if err := rows.Scan(&ec.EntityID, &ec.Count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// DB returns the primary pool, for health checks
func (s *Store) DB() *sql.DB { return s.conns.Primary() }

func scanRecord(rows *sql.Rows) (audit.Record, error) {
	var (
		r                   audit.Record
		id                  int64
		oldV, newV, actorID sql.NullString
	)
	if err := rows.Scan(&id, &r.EntityType, &r.EntityID, &r.Field, &oldV, &newV, &actorID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return audit.Record{}, fmt.Errorf("failed to scan audit record: %w", err)
	}
	r.ID = audit.RecordID(id)
	r.OldValue = ptrString(oldV)
	r.NewValue = ptrString(newV)
	r.ActorID = ptrString(actorID)
	return r, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
