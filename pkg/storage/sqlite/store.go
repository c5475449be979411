package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/platinummonkey/auditable/pkg/audit"
)

// Store implements audit.Store on an embedded SQLite database
type Store struct {
	db *sql.DB
}

// Open opens the database at path and ensures the schema. Use ":memory:"
// for a private in-process database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	s, err := NewStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database and ensures the schema
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &Store{db: db}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_records table: %w", err)
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS audit_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		actor_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_records_entity ON audit_records(entity_type, entity_id, id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_updated_at ON audit_records(entity_type, updated_at);
	`)
	return err
}

// DB returns the underlying database
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// InsertRecords writes the batch in one transaction
func (s *Store) InsertRecords(ctx context.Context, entityType string, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO audit_records
		(entity_type, entity_id, field, old_value, new_value, actor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			entityType, r.EntityID, r.Field,
			nullString(r.OldValue), nullString(r.NewValue), nullString(r.ActorID),
			r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit records: %w", err)
	}
	return nil
}

// CountRecords implements audit.Store
func (s *Store) CountRecords(ctx context.Context, entityType, entityID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_records WHERE entity_type = ? AND entity_id = ?",
		entityType, entityID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	return count, nil
}

// OldestRecords implements audit.Store
func (s *Store) OldestRecords(ctx context.Context, entityType, entityID string, n int) ([]audit.RecordID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM audit_records WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC LIMIT ?",
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

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}

	query := "DELETE FROM audit_records WHERE id IN (" + strings.Join(placeholders, ", ") + ")"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete audit records: %w", err)
	}
	return nil
}

// History implements audit.Store
func (s *Store) History(ctx context.Context, q audit.HistoryQuery) ([]audit.Record, error) {
	q = q.Normalize()

	query := `SELECT id, entity_type, entity_id, field, old_value, new_value, actor_id, created_at, updated_at
		FROM audit_records WHERE entity_type = ?`
	args := []interface{}{q.EntityType}
	if q.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, q.EntityID)
	}

	direction := "DESC"
	if q.Order == audit.OrderAsc {
		direction = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY updated_at %s, id %s LIMIT ?", direction, direction)
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	var records []audit.Record
	for rows.Next() {
		var (
			r                   audit.Record
			id                  int64
			oldV, newV, actorID sql.NullString
			createdAt, updateAt time.Time
		)
		if err := rows.Scan(&id, &r.EntityType, &r.EntityID, &r.Field, &oldV, &newV, &actorID, &createdAt, &updateAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		r.ID = audit.RecordID(id)
		r.OldValue = ptrString(oldV)
		r.NewValue = ptrString(newV)
		r.ActorID = ptrString(actorID)
		r.CreatedAt = createdAt.UTC()
		r.UpdatedAt = updateAt.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// EntitiesOverLimit implements audit.Pruner
func (s *Store) EntitiesOverLimit(ctx context.Context, entityType string, limit int) ([]audit.EntityCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id, COUNT(*) FROM audit_records
		WHERE entity_type = ? GROUP BY entity_id HAVING COUNT(*) > ? ORDER BY entity_id`,
		entityType, limit,
	)
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
	v := ns.String
	return &v
}
