package remotecare

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"
	"github.com/hengadev/remotecare/internal/schema"
)

// Encrypt encrypts plaintext with the personal key keyID.
func (v *Vault) Encrypt(ctx context.Context, keyID uuid.UUID, plaintext string) (string, error) {
	passphrase, err := v.EncryptionKey(ctx, keyID)
	if err != nil {
		return "", err
	}
	out, err := v.ciphers.Encrypt(plaintext, passphrase)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return out, nil
}

// Decrypt reverses Encrypt. A value stored as the null marker decrypts to
// the empty string.
func (v *Vault) Decrypt(ctx context.Context, keyID uuid.UUID, value string) (string, error) {
	passphrase, err := v.EncryptionKey(ctx, keyID)
	if err != nil {
		return "", err
	}
	out, _, err := v.ciphers.Decrypt(value, passphrase)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return out, nil
}

// EncryptStream encrypts src into dst in chunks with the personal key keyID.
func (v *Vault) EncryptStream(ctx context.Context, keyID uuid.UUID, src io.Reader, dst io.Writer) error {
	passphrase, err := v.EncryptionKey(ctx, keyID)
	if err != nil {
		return err
	}
	return v.observe(ctx, "stream.encrypt", map[string]any{"key_id": keyID}, func(ctx context.Context) error {
		if err := v.ciphers.EncryptStream(src, dst, passphrase); err != nil {
			return fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
		}
		return nil
	})
}

// DecryptStream reverses EncryptStream.
func (v *Vault) DecryptStream(ctx context.Context, keyID uuid.UUID, src io.Reader, dst io.Writer) error {
	passphrase, err := v.EncryptionKey(ctx, keyID)
	if err != nil {
		return err
	}
	return v.observe(ctx, "stream.decrypt", map[string]any{"key_id": keyID}, func(ctx context.Context) error {
		if err := v.ciphers.DecryptStream(src, dst, passphrase); err != nil {
			return fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
		}
		return nil
	})
}

// Seal fills the companion fields of record. Each encrypt field is
// encrypted into <Field>Encrypted with the record's personal key and each
// lookup field gets <Field>HMAC of its lower-cased value. Values that are
// already encrypted are copied as they are.
func (v *Vault) Seal(ctx context.Context, record any) error {
	rv, s, err := structOf(record, ActionSeal)
	if err != nil {
		return err
	}
	fields := s.Encrypted()
	if len(fields) == 0 {
		return nil
	}
	return v.observe(ctx, "seal", map[string]any{"type": s.Name}, func(ctx context.Context) error {
		var passphrase string
		var errs errsx.Map
		for _, f := range fields {
			plain, _ := readString(rv.FieldByIndex(f.Index))
			encrypted := rv.FieldByIndex(f.EncryptedIndex)

			if plain == "" {
				encrypted.SetString("")
				if f.Lookup {
					rv.FieldByIndex(f.HMACIndex).SetString("")
				}
				continue
			}
			if v.ciphers.IsEncrypted(plain) {
				encrypted.SetString(plain)
				continue
			}

			if passphrase == "" {
				if passphrase, err = v.recordKey(ctx, record, s, ActionSeal); err != nil {
					return err
				}
			}
			out, err := v.ciphers.Encrypt(plain, passphrase)
			if err != nil {
				errs.Set(f.Name, NewOperationFailedError(f.Name, ActionSeal, err))
				continue
			}
			encrypted.SetString(out)

			if f.Lookup {
				digest, err := v.HMAC(ctx, f.LookupKey, strings.ToLower(plain))
				if err != nil {
					errs.Set(f.Name, NewOperationFailedError(f.Name, ActionLookup, err))
					continue
				}
				rv.FieldByIndex(f.HMACIndex).SetString(digest)
			}
		}
		if !errs.IsEmpty() {
			return fmt.Errorf("%w: %s: %w", ErrEncryptionFailed, s.Name, errs.AsError())
		}
		return nil
	})
}

// Open fills the plaintext fields of record from their encrypted companions.
// Companions holding text without a cipher prefix are copied through.
func (v *Vault) Open(ctx context.Context, record any) error {
	rv, s, err := structOf(record, ActionOpen)
	if err != nil {
		return err
	}
	fields := s.Encrypted()
	if len(fields) == 0 {
		return nil
	}
	return v.observe(ctx, "open", map[string]any{"type": s.Name}, func(ctx context.Context) error {
		var passphrase string
		var errs errsx.Map
		for _, f := range fields {
			stored := rv.FieldByIndex(f.EncryptedIndex).String()
			plain := rv.FieldByIndex(f.Index)

			switch {
			case stored == "":
				writeString(plain, "", false)
				continue
			case !v.ciphers.IsEncrypted(stored):
				writeString(plain, stored, true)
				continue
			}

			if passphrase == "" {
				if passphrase, err = v.recordKey(ctx, record, s, ActionOpen); err != nil {
					return err
				}
			}
			out, valid, err := v.ciphers.Decrypt(stored, passphrase)
			if err != nil {
				errs.Set(f.Name, NewOperationFailedError(f.Name, ActionOpen, err))
				continue
			}
			writeString(plain, out, valid)
		}
		if !errs.IsEmpty() {
			return fmt.Errorf("%w: %s: %w", ErrDecryptionFailed, s.Name, errs.AsError())
		}
		return nil
	})
}

func (v *Vault) recordKey(ctx context.Context, record any, s *schema.Schema, action Action) (string, error) {
	id, ok := keyIDOf(record)
	if !ok {
		return "", NewMissingEncryptionKeyError(s.Name, action)
	}
	return v.EncryptionKey(ctx, id)
}

func keyIDOf(record any) (uuid.UUID, bool) {
	holder, ok := record.(KeyHolder)
	if !ok {
		return uuid.Nil, false
	}
	id := holder.EncryptionKeyID()
	return id, id != uuid.Nil
}

// structOf checks that record is a non-nil pointer to a struct and returns
// the struct value with its schema.
func structOf(record any, action Action) (reflect.Value, *schema.Schema, error) {
	rv := reflect.ValueOf(record)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, nil, NewInvalidRecordError(record, action, "not a non-nil pointer")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, nil, NewInvalidRecordError(record, action, "not a struct")
	}
	s, err := schema.Of(rv.Type())
	if err != nil {
		return reflect.Value{}, nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return rv, s, nil
}

// readString returns the text of a string or *string field and whether it
// was set.
func readString(fv reflect.Value) (string, bool) {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return "", false
		}
		fv = fv.Elem()
	}
	return fv.String(), true
}

// writeString sets a string or *string field. A pointer field is set to nil
// when set is false.
func writeString(fv reflect.Value, s string, set bool) {
	if fv.Kind() != reflect.Pointer {
		fv.SetString(s)
		return
	}
	if !set {
		fv.Set(reflect.Zero(fv.Type()))
		return
	}
	p := reflect.New(fv.Type().Elem())
	p.Elem().SetString(s)
	fv.Set(p)
}
