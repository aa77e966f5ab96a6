// Package sqlite stores wrapped personal keys and the audit trail in a
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/internal/sqlstore"
	"github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS encryption_keys (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL UNIQUE,
		wrapped_key BLOB NOT NULL,
		kek_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		rotated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_encryption_keys_kek ON encryption_keys(kek_id)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		added_on DATETIME NOT NULL,
		added_by TEXT NOT NULL,
		encryption_key_id TEXT,
		module TEXT NOT NULL,
		name TEXT NOT NULL,
		object_id TEXT NOT NULL,
		json TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_object ON audit_entries(module, name, object_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_added_on ON audit_entries(added_on)`,
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// Dialect describes SQLite to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Schema:            schema,
	IsUniqueViolation: isUniqueViolation,
}

// Store implements remotecare.KeyStore and audit.Store.
type Store struct {
	*sqlstore.Store
}

// Open opens or creates the database file at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: database connection test failed for '%s': %w", remotecare.ErrDatabaseUnavailable, path, err)
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
