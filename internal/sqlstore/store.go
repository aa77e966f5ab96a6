// Package sqlstore keeps wrapped personal keys and audit entries in a SQL
// database through database/sql. The sqlite and postgres stores supply the
// dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/audit"
)

// Dialect holds what differs between databases.
type Dialect struct {
	Name string
	// Schema is executed statement by statement by Migrate.
	Schema []string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

// Store implements remotecare.KeyStore and audit.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate %s schema: %w", remotecare.ErrDatabaseUnavailable, s.dialect.Name, err)
		}
	}
	return nil
}

// Ping checks the connection, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", remotecare.ErrDatabaseUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind turns ? placeholders into $n when the dialect needs it.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", remotecare.ErrDatabaseUnavailable, op, err)
}

const keyColumns = `id, owner_id, wrapped_key, kek_id, created_at, rotated_at`

func (s *Store) CreateKey(ctx context.Context, key *remotecare.EncryptionKey) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO encryption_keys (`+keyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`), key.ID.String(), key.OwnerID, key.WrappedKey, key.KEKID, key.CreatedAt.UTC(), nullTime(key.RotatedAt))
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: key %s for owner %s", remotecare.ErrKeyExists, key.ID, key.OwnerID)
		}
		return unavailable("create key", err)
	}
	return nil
}

func (s *Store) GetKey(ctx context.Context, id uuid.UUID) (*remotecare.EncryptionKey, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+keyColumns+` FROM encryption_keys WHERE id = ?`), id.String())
	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", remotecare.ErrKeyNotFound, id)
	}
	if err != nil {
		return nil, unavailable("get key", err)
	}
	return key, nil
}

func (s *Store) GetKeyByOwner(ctx context.Context, ownerID string) (*remotecare.EncryptionKey, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+keyColumns+` FROM encryption_keys WHERE owner_id = ?`), ownerID)
	key, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: owner %s", remotecare.ErrKeyNotFound, ownerID)
	}
	if err != nil {
		return nil, unavailable("get key by owner", err)
	}
	return key, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]*remotecare.EncryptionKey, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+keyColumns+` FROM encryption_keys ORDER BY created_at, id`)
	if err != nil {
		return nil, unavailable("list keys", err)
	}
	defer rows.Close()

	var keys []*remotecare.EncryptionKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, unavailable("list keys", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list keys", err)
	}
	return keys, nil
}

func (s *Store) UpdateKey(ctx context.Context, key *remotecare.EncryptionKey) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE encryption_keys SET wrapped_key = ?, kek_id = ?, rotated_at = ?
		WHERE id = ?
	`), key.WrappedKey, key.KEKID, nullTime(key.RotatedAt), key.ID.String())
	if err != nil {
		return unavailable("update key", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update key", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", remotecare.ErrKeyNotFound, key.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*remotecare.EncryptionKey, error) {
	var (
		key       remotecare.EncryptionKey
		id        string
		rotatedAt sql.NullTime
	)
	if err := row.Scan(&id, &key.OwnerID, &key.WrappedKey, &key.KEKID, &key.CreatedAt, &rotatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse key id %q: %w", id, err)
	}
	key.ID = parsed
	key.CreatedAt = key.CreatedAt.UTC()
	if rotatedAt.Valid {
		t := rotatedAt.Time.UTC()
		key.RotatedAt = &t
	}
	return &key, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Append stores e. The module, type name and object id are copied out of
// the JSON document into their own columns for filtering.
func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	module, name := e.Object()
	var keyID sql.NullString
	if e.EncryptionKeyID != nil {
		keyID = sql.NullString{String: e.EncryptionKeyID.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO audit_entries (id, added_on, added_by, encryption_key_id, module, name, object_id, json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), e.ID.String(), e.AddedOn.UTC(), e.AddedBy, keyID, module, name, e.ObjectID(), e.JSON)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("audit entry %s already stored", e.ID)
		}
		return unavailable("append audit entry", err)
	}
	return nil
}

// List returns the entries matching f, oldest first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		where = append(where, cond)
		args = append(args, arg)
	}
	if f.Module != "" {
		add("module = ?", f.Module)
	}
	if f.Name != "" {
		add("name = ?", f.Name)
	}
	if f.ObjectID != "" {
		add("object_id = ?", f.ObjectID)
	}
	if f.AddedBy != "" {
		add("added_by = ?", f.AddedBy)
	}
	if !f.Since.IsZero() {
		add("added_on >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("added_on < ?", f.Until.UTC())
	}

	query := `SELECT id, added_on, added_by, encryption_key_id, json FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY added_on, id"
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, unavailable("list audit entries", err)
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		var (
			e     audit.Entry
			id    string
			keyID sql.NullString
		)
		if err := rows.Scan(&id, &e.AddedOn, &e.AddedBy, &keyID, &e.JSON); err != nil {
			return nil, unavailable("list audit entries", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse audit entry id %q: %w", id, err)
		}
		e.AddedOn = e.AddedOn.UTC()
		if keyID.Valid {
			parsed, err := uuid.Parse(keyID.String)
			if err != nil {
				return nil, fmt.Errorf("parse encryption key id %q: %w", keyID.String, err)
			}
			e.EncryptionKeyID = &parsed
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list audit entries", err)
	}
	return out, nil
}

var (
	_ remotecare.KeyStore = (*Store)(nil)
	_ audit.Store         = (*Store)(nil)
)
