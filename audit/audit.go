// Package audit holds the audit trail types: the change record written for a
// saved record, the per-record tracking state and the storage contracts.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Record is the JSON document stored in Entry.JSON.
type Record struct {
	Module  string         `json:"module"`
	Name    string         `json:"name"`
	ID      any            `json:"id"`
	Changes map[string]any `json:"changes"`
	Added   bool           `json:"added"`
}

// Entry is one change to one record. Values of encrypted fields stay
// encrypted with the key referenced by EncryptionKeyID.
type Entry struct {
	ID              uuid.UUID
	AddedOn         time.Time
	AddedBy         string
	EncryptionKeyID *uuid.UUID
	JSON            string
}

// NewEntry encodes rec into a fresh entry.
func NewEntry(rec Record, addedBy string, keyID *uuid.UUID) (*Entry, error) {
	e := &Entry{
		ID:              uuid.New(),
		AddedOn:         time.Now().UTC(),
		AddedBy:         addedBy,
		EncryptionKeyID: keyID,
	}
	if err := e.SetRecord(rec); err != nil {
		return nil, err
	}
	return e, nil
}

// Record decodes the stored document.
func (e *Entry) Record() (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(e.JSON), &rec); err != nil {
		return Record{}, fmt.Errorf("decode audit entry %s: %w", e.ID, err)
	}
	if rec.Changes == nil {
		rec.Changes = map[string]any{}
	}
	return rec, nil
}

// SetRecord replaces the stored document.
func (e *Entry) SetRecord(rec Record) error {
	if rec.Changes == nil {
		rec.Changes = map[string]any{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	e.JSON = string(b)
	return nil
}

// SetObjectID stores the id of a record that only got one on insert.
func (e *Entry) SetObjectID(id any) error {
	rec, err := e.Record()
	if err != nil {
		return err
	}
	rec.ID = id
	return e.SetRecord(rec)
}

// Added reports whether the entry describes a newly created record.
func (e *Entry) Added() bool {
	return gjson.Get(e.JSON, "added").Bool()
}

// Object returns the module and type name of the audited record.
func (e *Entry) Object() (module, name string) {
	res := gjson.GetMany(e.JSON, "module", "name")
	return res[0].String(), res[1].String()
}

// ObjectID returns the audited record's id as text.
func (e *Entry) ObjectID() string {
	return gjson.Get(e.JSON, "id").String()
}

// Change returns the raw stored value of one field. The value of an
// encrypted field is ciphertext.
func (e *Entry) Change(field string) (gjson.Result, bool) {
	res := gjson.Get(e.JSON, "changes."+escapePath(field))
	return res, res.Exists()
}

func escapePath(s string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(s)
}

// Filter selects entries from a Store. Zero fields do not filter.
type Filter struct {
	Module   string
	Name     string
	ObjectID string
	AddedBy  string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *Entry) bool {
	module, name := e.Object()
	switch {
	case f.Module != "" && f.Module != module:
		return false
	case f.Name != "" && f.Name != name:
		return false
	case f.ObjectID != "" && f.ObjectID != e.ObjectID():
		return false
	case f.AddedBy != "" && f.AddedBy != e.AddedBy:
		return false
	case !f.Since.IsZero() && e.AddedOn.Before(f.Since):
		return false
	case !f.Until.IsZero() && !e.AddedOn.Before(f.Until):
		return false
	}
	return true
}

// Store persists entries. List returns entries oldest first.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) ([]*Entry, error)
}

// Publisher forwards stored entries to another system.
type Publisher interface {
	Publish(ctx context.Context, e *Entry) error
}

// IsNotSame reports whether a field changed from previous to current. A
// value going from nil to the empty string counts as a change.
func IsNotSame(previous, current any) bool {
	if previous == nil {
		if s, ok := current.(string); ok && s == "" {
			return true
		}
	}
	return !equal(previous, current)
}

func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// Diff returns the names of the fields whose value changed.
func Diff(initial, current map[string]any) []string {
	var out []string
	for name, previous := range initial {
		if IsNotSame(previous, current[name]) {
			out = append(out, name)
		}
	}
	return out
}
