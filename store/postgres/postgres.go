// Package postgres stores wrapped personal keys and the audit trail in
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/internal/sqlstore"
	"github.com/lib/pq"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS encryption_keys (
		id UUID PRIMARY KEY,
		owner_id TEXT NOT NULL UNIQUE,
		wrapped_key BYTEA NOT NULL,
		kek_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		rotated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_encryption_keys_kek ON encryption_keys(kek_id)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id UUID PRIMARY KEY,
		added_on TIMESTAMPTZ NOT NULL,
		added_by TEXT NOT NULL,
		encryption_key_id UUID,
		module TEXT NOT NULL,
		name TEXT NOT NULL,
		object_id TEXT NOT NULL,
		json TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_object ON audit_entries(module, name, object_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_added_on ON audit_entries(added_on)`,
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Dialect describes PostgreSQL to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Schema:            schema,
	Numbered:          true,
	IsUniqueViolation: isUniqueViolation,
}

// Store implements remotecare.KeyStore and audit.Store.
type Store struct {
	*sqlstore.Store
}

// Open connects with a lib/pq connection string or URL and migrates the
// database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", remotecare.ErrDatabaseUnavailable, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and migrates it.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{Store: sqlstore.New(db, Dialect)}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
