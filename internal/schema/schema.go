// Package schema reads the rc struct tags of a record type once and caches
// the result.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/hengadev/errsx"
)

const (
	TagName      = "rc"
	AuditTagName = "audit"

	OpEncrypt = "encrypt"
	OpLookup  = "lookup"
	OpUnique  = "unique"

	SuffixEncrypted = "Encrypted"
	SuffixHMAC      = "HMAC"

	IDField = "ID"
)

var (
	ErrNotStruct        = errors.New("record must be a struct")
	ErrInvalidTag       = errors.New("invalid rc tag")
	ErrMissingField     = errors.New("missing companion field")
	ErrInvalidFieldType = errors.New("invalid field type")
)

// Field describes one exported field of a record.
type Field struct {
	Name    string
	Index   []int
	Column  string
	Pointer bool

	Encrypt   bool
	Lookup    bool
	LookupKey string
	Unique    bool

	EncryptedName  string
	EncryptedIndex []int
	HMACName       string
	HMACIndex      []int

	Audit bool
}

// Schema is the parsed layout of a record type.
type Schema struct {
	Type    reflect.Type
	Package string
	Name    string
	Fields  []*Field
	IDIndex []int

	byName map[string]*Field
}

// Field returns the field called name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Encrypted returns the fields carrying the encrypt operation.
func (s *Schema) Encrypted() []*Field {
	var out []*Field
	for _, f := range s.Fields {
		if f.Encrypt {
			out = append(out, f)
		}
	}
	return out
}

// Audited returns the fields recorded in the audit trail.
func (s *Schema) Audited() []*Field {
	var out []*Field
	for _, f := range s.Fields {
		if f.Audit {
			out = append(out, f)
		}
	}
	return out
}

// LookupKeys returns the distinct search key names used by the record.
func (s *Schema) LookupKeys() []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range s.Fields {
		if f.Lookup && !seen[f.LookupKey] {
			seen[f.LookupKey] = true
			out = append(out, f.LookupKey)
		}
	}
	return out
}

var cache sync.Map

// Of returns the cached schema of t. Pointer types are dereferenced.
func Of(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if s, ok := cache.Load(t); ok {
		return s.(*Schema), nil
	}
	s, err := Parse(t)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// Parse reads the tags of t without consulting the cache.
func Parse(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %s", ErrNotStruct, t.Kind())
	}

	s := &Schema{
		Type:    t,
		Package: t.PkgPath(),
		Name:    t.Name(),
		byName:  map[string]*Field{},
	}
	companions := map[string]bool{}
	var errs errsx.Map

	for _, sf := range reflect.VisibleFields(t) {
		if sf.Anonymous || !sf.IsExported() {
			continue
		}
		f := &Field{
			Name:    sf.Name,
			Index:   sf.Index,
			Column:  SnakeCase(sf.Name),
			Pointer: sf.Type.Kind() == reflect.Pointer,
			Audit:   sf.Tag.Get(AuditTagName) != "-",
		}
		if tag, ok := sf.Tag.Lookup(TagName); ok {
			if err := parseTag(f, tag); err != nil {
				errs.Set(sf.Name, err)
				continue
			}
		}
		if sf.Name == IDField {
			s.IDIndex = sf.Index
			f.Audit = false
		}
		s.Fields = append(s.Fields, f)
		s.byName[f.Name] = f
	}

	for _, f := range s.Fields {
		if !f.Encrypt {
			continue
		}
		sf, _ := t.FieldByName(f.Name)
		if !isStringLike(sf.Type) {
			errs.Set(f.Name, fmt.Errorf("%w: %s must be string or *string, got %s", ErrInvalidFieldType, f.Name, sf.Type))
			continue
		}
		f.EncryptedName = f.Name + SuffixEncrypted
		idx, err := companion(t, f.EncryptedName)
		if err != nil {
			errs.Set(f.Name, err)
			continue
		}
		f.EncryptedIndex = idx
		companions[f.EncryptedName] = true

		if f.Lookup {
			f.HMACName = f.Name + SuffixHMAC
			idx, err := companion(t, f.HMACName)
			if err != nil {
				errs.Set(f.Name, err)
				continue
			}
			f.HMACIndex = idx
			companions[f.HMACName] = true
		}
	}

	for _, f := range s.Fields {
		if companions[f.Name] {
			f.Audit = false
		}
	}

	if !errs.IsEmpty() {
		return nil, fmt.Errorf("schema %s: %w", t, errs.AsError())
	}
	return s, nil
}

func parseTag(f *Field, tag string) error {
	for _, part := range strings.Split(tag, ",") {
		op, arg, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch op {
		case OpEncrypt:
			f.Encrypt = true
		case OpLookup:
			f.Lookup = true
			f.LookupKey = arg
			if f.LookupKey == "" {
				f.LookupKey = f.Column
			}
		case OpUnique:
			f.Unique = true
		case "":
		default:
			return fmt.Errorf("%w: unknown operation %q", ErrInvalidTag, op)
		}
	}
	if f.Lookup && !f.Encrypt {
		return fmt.Errorf("%w: lookup requires encrypt", ErrInvalidTag)
	}
	if f.Unique && !f.Lookup {
		return fmt.Errorf("%w: unique requires lookup", ErrInvalidTag)
	}
	return nil
}

func companion(t reflect.Type, name string) ([]int, error) {
	sf, ok := t.FieldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	if sf.Type.Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %s must be string, got %s", ErrInvalidFieldType, name, sf.Type)
	}
	return sf.Index, nil
}

func isStringLike(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String
}

// SnakeCase converts a Go field name to the column style used in audit
// entries, e.g. FirstName -> first_name, BSN -> bsn.
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
