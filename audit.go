package remotecare

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/internal/schema"
)

// Track takes the snapshot later changes are compared with. Call it after
// loading and opening a record; CommitAudit calls it after every save.
func (v *Vault) Track(record any) error {
	a, ok := record.(audit.Auditable)
	if !ok {
		return nil
	}
	rv, s, err := structOf(record, ActionAudit)
	if err != nil {
		return err
	}
	a.AuditState().Snapshot(auditValues(rv, s))
	return nil
}

// PrepareAudit compares the sealed record with its snapshot and returns the
// entry to commit once the record is saved. A record without a snapshot is
// new and all its audited fields are recorded. It returns nil when auditing
// is off or nothing changed.
func (v *Vault) PrepareAudit(ctx context.Context, record any) (*audit.Entry, error) {
	if v.auditDisabled {
		return nil, nil
	}
	a, ok := record.(audit.Auditable)
	if !ok || a.AuditState().Disabled() {
		return nil, nil
	}
	rv, s, err := structOf(record, ActionAudit)
	if err != nil {
		return nil, err
	}

	state := a.AuditState()
	current := auditValues(rv, s)
	initial, tracked := state.Initial()

	changes := map[string]any{}
	if tracked {
		changed := audit.Diff(initial, current)
		if len(changed) == 0 {
			return nil, nil
		}
		for _, name := range changed {
			changes[name] = nil
		}
	}
	for _, f := range s.Audited() {
		if _, ok := changes[f.Column]; ok || !tracked {
			changes[f.Column] = storedValue(rv, f)
		}
	}

	user := state.ChangedBy()
	if user == "" {
		user, _ = ActorFrom(ctx)
	}
	if user == "" && v.strictAudit {
		return nil, NewAuditUserNotDefinedError(s.Name)
	}

	var keyID *uuid.UUID
	if id, ok := keyIDOf(record); ok && user != "" {
		keyID = &id
	}

	entry, err := audit.NewEntry(audit.Record{
		Module:  s.Package,
		Name:    s.Name,
		ID:      recordID(rv, s),
		Changes: changes,
		Added:   !tracked,
	}, user, keyID)
	if err != nil {
		return nil, err
	}
	entry.AddedOn = v.now()
	return entry, nil
}

// CommitAudit writes entry after record was saved and takes a new snapshot.
// The id of an added record is read from its ID field. An entry without a
// user is logged instead of stored.
func (v *Vault) CommitAudit(ctx context.Context, record any, entry *audit.Entry) error {
	if entry != nil {
		if err := v.commit(ctx, record, entry); err != nil {
			return err
		}
	}
	return v.Track(record)
}

func (v *Vault) commit(ctx context.Context, record any, entry *audit.Entry) error {
	if entry.Added() {
		rv, s, err := structOf(record, ActionAudit)
		if err != nil {
			return err
		}
		if err := entry.SetObjectID(recordID(rv, s)); err != nil {
			return err
		}
	}

	module, name := entry.Object()
	meta := map[string]any{"module": module, "name": name, "entry_id": entry.ID}

	if entry.AddedBy == "" {
		v.logger.ErrorContext(ctx, "audit user not defined", "module", module, "name", name)
		return v.observe(ctx, "audit.log", meta, func(ctx context.Context) error {
			v.logger.InfoContext(ctx, "audit entry", "entry", entry.JSON)
			return nil
		})
	}
	if v.auditStore == nil {
		return v.observe(ctx, "audit.log", meta, func(ctx context.Context) error {
			v.logger.InfoContext(ctx, "audit entry", "entry_id", entry.ID, "added_by", entry.AddedBy, "entry", entry.JSON)
			return nil
		})
	}

	err := v.observe(ctx, "audit.store", meta, func(ctx context.Context) error {
		return v.auditStore.Append(ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("store audit entry: %w", err)
	}

	for _, p := range v.publishers {
		err := v.observe(ctx, "audit.publish", meta, func(ctx context.Context) error {
			return p.Publish(ctx, entry)
		})
		if err != nil {
			v.logger.WarnContext(ctx, "publish audit entry", "entry_id", entry.ID, "error", err)
		}
	}
	return nil
}

// Save seals record, runs save and writes the audit entry of the change.
func (v *Vault) Save(ctx context.Context, record any, save func(ctx context.Context) error) error {
	if err := v.Seal(ctx, record); err != nil {
		return err
	}
	entry, err := v.PrepareAudit(ctx, record)
	if err != nil {
		return err
	}
	if err := save(ctx); err != nil {
		return err
	}
	return v.CommitAudit(ctx, record, entry)
}

// AuditChanges returns the changes of entry with encrypted values decrypted
// by the entry's key.
func (v *Vault) AuditChanges(ctx context.Context, entry *audit.Entry) (map[string]any, error) {
	rec, err := entry.Record()
	if err != nil {
		return nil, err
	}

	var passphrase string
	for name, value := range rec.Changes {
		s, ok := value.(string)
		if !ok || !v.ciphers.IsEncrypted(s) {
			continue
		}
		if passphrase == "" {
			if entry.EncryptionKeyID == nil {
				return nil, NewMissingEncryptionKeyError(rec.Name, ActionAudit)
			}
			if passphrase, err = v.EncryptionKey(ctx, *entry.EncryptionKeyID); err != nil {
				return nil, err
			}
		}
		plain, valid, err := v.ciphers.Decrypt(s, passphrase)
		if err != nil {
			return nil, NewOperationFailedError(name, ActionOpen, err)
		}
		if valid {
			rec.Changes[name] = plain
		} else {
			rec.Changes[name] = nil
		}
	}
	return rec.Changes, nil
}

// History lists stored entries matching f, oldest first.
func (v *Vault) History(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	if v.auditStore == nil {
		return nil, fmt.Errorf("%w: no audit store configured", ErrInvalidConfiguration)
	}
	return v.auditStore.List(ctx, f)
}

// auditValues returns the plaintext of every audited field, keyed by column.
func auditValues(rv reflect.Value, s *schema.Schema) map[string]any {
	values := map[string]any{}
	for _, f := range s.Audited() {
		values[f.Column] = plainValue(rv, f)
	}
	return values
}

func plainValue(rv reflect.Value, f *schema.Field) any {
	fv := rv.FieldByIndex(f.Index)
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

// storedValue is the value written to an entry: the encrypted companion
// for encrypted fields.
func storedValue(rv reflect.Value, f *schema.Field) any {
	if f.Encrypt {
		return rv.FieldByIndex(f.EncryptedIndex).String()
	}
	return plainValue(rv, f)
}

func recordID(rv reflect.Value, s *schema.Schema) any {
	if s.IDIndex == nil {
		return nil
	}
	id := rv.FieldByIndex(s.IDIndex)
	if id.IsZero() {
		return nil
	}
	return id.Interface()
}
