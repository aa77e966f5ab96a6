package remotecare

import (
	"context"
	"reflect"
	"strings"

	"github.com/hengadev/remotecare/internal/schema"
)

// Lookup is an exact-match condition on the HMAC column of an encrypted field.
type Lookup struct {
	Field  string
	Column string
	HMAC   string
}

// LookupHMAC returns the condition that finds records of record's type whose
// field equals value. field is the Go field name or its column name. Only
// fields tagged with lookup can be queried; every other operation on
// encrypted data is rejected with ErrUnsupportedLookup.
func (v *Vault) LookupHMAC(ctx context.Context, record any, field, value string) (Lookup, error) {
	t := reflect.TypeOf(record)
	if t == nil {
		return Lookup{}, NewInvalidRecordError(record, ActionLookup, "nil record")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Lookup{}, NewInvalidRecordError(record, ActionLookup, "not a struct")
	}
	s, err := schema.Of(t)
	if err != nil {
		return Lookup{}, err
	}

	f, ok := s.Field(field)
	if !ok {
		for _, candidate := range s.Fields {
			if candidate.Column == field {
				f, ok = candidate, true
				break
			}
		}
	}
	switch {
	case !ok:
		return Lookup{}, NewUnknownFieldError(field, s.Name)
	case !f.Encrypt:
		return Lookup{}, NewUnsupportedLookupError(f.Name, "is not encrypted")
	case !f.Lookup:
		return Lookup{}, NewUnsupportedLookupError(f.Name, "has no lookup column")
	}

	digest, err := v.HMAC(ctx, f.LookupKey, strings.ToLower(value))
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{
		Field:  f.HMACName,
		Column: f.Column + "_hmac",
		HMAC:   digest,
	}, nil
}
