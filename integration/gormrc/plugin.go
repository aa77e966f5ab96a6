// Package gormrc plugs a remotecare Vault into gorm. Records are sealed and
// their audit entry prepared before they are created or updated, the entry
// is committed once the row is written, and loaded records are opened and
// tracked after every query.
//
//	db.Use(gormrc.New(vault))
//	ctx := remotecare.WithActor(ctx, user)
//	db.WithContext(ctx).Create(&patient)
//
// Plaintext fields must be excluded from the table with `gorm:"-"`; only
// their companions are stored.
package gormrc

import (
	"reflect"

	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/audit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entriesKey = "remotecare:audit_entries"

// Plugin implements gorm.Plugin.
type Plugin struct {
	vault *remotecare.Vault
}

func New(v *remotecare.Vault) *Plugin {
	return &Plugin{vault: v}
}

func (p *Plugin) Name() string { return "remotecare" }

// Initialize registers the callbacks.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("remotecare:before_create", p.beforeSave); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("remotecare:after_create", p.afterSave); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("remotecare:before_update", p.beforeSave); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("remotecare:after_update", p.afterSave); err != nil {
		return err
	}
	return cb.Query().After("gorm:query").Register("remotecare:after_query", p.afterQuery)
}

func (p *Plugin) beforeSave(tx *gorm.DB) {
	if tx.Error != nil {
		return
	}
	ctx := tx.Statement.Context
	records := records(tx)
	entries := make([]*audit.Entry, len(records))
	for i, record := range records {
		if err := p.vault.Seal(ctx, record); err != nil {
			tx.AddError(err)
			return
		}
		entry, err := p.vault.PrepareAudit(ctx, record)
		if err != nil {
			tx.AddError(err)
			return
		}
		entries[i] = entry
	}
	tx.InstanceSet(entriesKey, entries)
}

func (p *Plugin) afterSave(tx *gorm.DB) {
	if tx.Error != nil {
		return
	}
	v, ok := tx.InstanceGet(entriesKey)
	if !ok {
		return
	}
	entries := v.([]*audit.Entry)
	for i, record := range records(tx) {
		if i >= len(entries) {
			break
		}
		if err := p.vault.CommitAudit(tx.Statement.Context, record, entries[i]); err != nil {
			tx.AddError(err)
			return
		}
	}
}

func (p *Plugin) afterQuery(tx *gorm.DB) {
	if tx.Error != nil || tx.RowsAffected == 0 {
		return
	}
	ctx := tx.Statement.Context
	for _, record := range records(tx) {
		if err := p.vault.Open(ctx, record); err != nil {
			tx.AddError(err)
			return
		}
		if err := p.vault.Track(record); err != nil {
			tx.AddError(err)
			return
		}
	}
}

// records returns pointers to the structs the statement reads or writes.
// Map based updates carry no record and yield nothing.
func records(tx *gorm.DB) []any {
	if _, isMap := tx.Statement.Dest.(map[string]any); isMap {
		return nil
	}
	rv := tx.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if r, ok := addr(rv.Index(i)); ok {
				out = append(out, r)
			}
		}
		return out
	case reflect.Struct:
		if r, ok := addr(rv); ok {
			return []any{r}
		}
	}
	return nil
}

func addr(rv reflect.Value) (any, bool) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct || !rv.CanAddr() {
		return nil, false
	}
	return rv.Addr().Interface(), true
}

// WhereLookup adds an exact-match condition on the lookup column of field.
// Lookup errors are added to the returned statement.
func WhereLookup(db *gorm.DB, v *remotecare.Vault, model any, field, value string) *gorm.DB {
	l, err := v.LookupHMAC(db.Statement.Context, model, field, value)
	if err != nil {
		db = db.Session(&gorm.Session{})
		db.AddError(err)
		return db
	}
	column := l.Column
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err == nil {
		if f := stmt.Schema.LookUpField(l.Field); f != nil {
			column = f.DBName
		}
	}
	return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: l.HMAC})
}
