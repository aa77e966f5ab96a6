package remotecare

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hengadev/errsx"
	"github.com/hengadev/remotecare/internal/monitoring"
	"github.com/hengadev/remotecare/internal/random"
	"golang.org/x/sync/errgroup"
)

// EncryptionKey is a personal key wrapped by the master key. The unwrapped
// material never leaves the Vault except through EncryptionKey.
type EncryptionKey struct {
	ID         uuid.UUID
	OwnerID    string
	WrappedKey []byte
	KEKID      string
	CreatedAt  time.Time
	RotatedAt  *time.Time
}

// Clone returns a deep copy of k.
func (k *EncryptionKey) Clone() *EncryptionKey {
	if k == nil {
		return nil
	}
	c := *k
	c.WrappedKey = bytes.Clone(k.WrappedKey)
	if k.RotatedAt != nil {
		t := *k.RotatedAt
		c.RotatedAt = &t
	}
	return &c
}

// CreateEncryptionKey generates, wraps and stores a personal key for owner.
// An owner has at most one key.
func (v *Vault) CreateEncryptionKey(ctx context.Context, ownerID string) (*EncryptionKey, error) {
	var key *EncryptionKey
	err := v.observe(ctx, "key.create", map[string]any{"owner_id": ownerID}, func(ctx context.Context) error {
		if _, err := v.keys.GetKeyByOwner(ctx, ownerID); err == nil {
			return fmt.Errorf("%w: owner %s", ErrKeyExists, ownerID)
		} else if !errors.Is(err, ErrKeyNotFound) {
			return err
		}

		material, err := random.ID()
		if err != nil {
			return fmt.Errorf("generate personal key: %w", err)
		}
		_, kekID := v.KEK()
		var wrapped []byte
		err = v.withRetry(ctx, func(ctx context.Context) error {
			var err error
			wrapped, err = v.kms.EncryptKey(ctx, kekID, []byte(material))
			return err
		})
		if err != nil {
			return fmt.Errorf("wrap personal key: %w", err)
		}

		key = &EncryptionKey{
			ID:         uuid.New(),
			OwnerID:    ownerID,
			WrappedKey: wrapped,
			KEKID:      kekID,
			CreatedAt:  v.now(),
		}
		if err := v.keys.CreateKey(ctx, key); err != nil {
			return err
		}
		if err := v.cache.Set(ctx, key); err != nil {
			v.logger.WarnContext(ctx, "cache personal key", "key_id", key.ID, "error", err)
		}
		v.hook.OnKeyOperation(ctx, monitoring.KeyCreate, key.ID.String(), map[string]any{"owner_id": ownerID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key.Clone(), nil
}

// EncryptionKey returns the unwrapped personal key with the given id.
func (v *Vault) EncryptionKey(ctx context.Context, id uuid.UUID) (string, error) {
	if id == uuid.Nil {
		return "", fmt.Errorf("%w: nil key id", ErrKeyNotFound)
	}
	key, err := v.wrappedKey(ctx, id)
	if err != nil {
		return "", err
	}
	return v.unwrap(ctx, key)
}

// EncryptionKeyForOwner returns the id and unwrapped personal key of owner.
func (v *Vault) EncryptionKeyForOwner(ctx context.Context, ownerID string) (uuid.UUID, string, error) {
	key, found, err := v.cache.GetByOwner(ctx, ownerID)
	if err != nil {
		v.logger.WarnContext(ctx, "read key cache", "owner_id", ownerID, "error", err)
	}
	if !found {
		v.hook.OnKeyOperation(ctx, monitoring.KeyCacheMiss, "", map[string]any{"owner_id": ownerID})
		res, err, _ := v.loads.Do("owner:"+ownerID, func() (any, error) {
			k, err := v.keys.GetKeyByOwner(ctx, ownerID)
			if err != nil {
				return nil, err
			}
			if err := v.cache.Set(ctx, k); err != nil {
				v.logger.WarnContext(ctx, "cache personal key", "key_id", k.ID, "error", err)
			}
			return k, nil
		})
		if err != nil {
			return uuid.Nil, "", err
		}
		key = res.(*EncryptionKey).Clone()
	} else {
		v.hook.OnKeyOperation(ctx, monitoring.KeyCacheHit, key.ID.String(), nil)
	}
	material, err := v.unwrap(ctx, key)
	if err != nil {
		return uuid.Nil, "", err
	}
	return key.ID, material, nil
}

func (v *Vault) wrappedKey(ctx context.Context, id uuid.UUID) (*EncryptionKey, error) {
	key, found, err := v.cache.Get(ctx, id)
	if err != nil {
		v.logger.WarnContext(ctx, "read key cache", "key_id", id, "error", err)
	}
	if found {
		v.hook.OnKeyOperation(ctx, monitoring.KeyCacheHit, id.String(), nil)
		return key, nil
	}
	v.hook.OnKeyOperation(ctx, monitoring.KeyCacheMiss, id.String(), nil)

	res, err, _ := v.loads.Do(id.String(), func() (any, error) {
		k, err := v.keys.GetKey(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := v.cache.Set(ctx, k); err != nil {
			v.logger.WarnContext(ctx, "cache personal key", "key_id", id, "error", err)
		}
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*EncryptionKey).Clone(), nil
}

func (v *Vault) unwrap(ctx context.Context, key *EncryptionKey) (string, error) {
	var material []byte
	err := v.withRetry(ctx, func(ctx context.Context) error {
		var err error
		material, err = v.kms.DecryptKey(ctx, key.KEKID, key.WrappedKey)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: unwrap personal key %s: %w", ErrDecryptionFailed, key.ID, err)
	}
	v.hook.OnKeyOperation(ctx, monitoring.KeyUnwrap, key.ID.String(), nil)
	return string(material), nil
}

// RotateMasterKey rewraps every personal key with the master key called
// newAlias. Keys that fail keep their old wrapping; their errors are returned
// together once all keys were tried. New keys use newAlias from then on.
func (v *Vault) RotateMasterKey(ctx context.Context, newAlias string) error {
	return v.observe(ctx, "key.rotate", map[string]any{"kek_alias": newAlias}, func(ctx context.Context) error {
		newID, err := v.resolveKEK(ctx, newAlias)
		if err != nil {
			return err
		}
		keys, err := v.keys.ListKeys(ctx)
		if err != nil {
			return fmt.Errorf("list personal keys: %w", err)
		}

		var (
			errs    errsx.Map
			g, gctx = errgroup.WithContext(ctx)
			results = make([]error, len(keys))
		)
		g.SetLimit(v.rotationWorkers)
		for i, key := range keys {
			g.Go(func() error {
				results[i] = v.rewrap(gctx, key, newID)
				return nil
			})
		}
		_ = g.Wait()

		rotated := 0
		for i, err := range results {
			if err != nil {
				errs.Set(keys[i].ID.String(), err)
				continue
			}
			rotated++
		}

		v.kekMu.Lock()
		v.kekAlias, v.kekID = newAlias, newID
		v.kekMu.Unlock()

		v.logger.InfoContext(ctx, "master key rotated", "kek_alias", newAlias, "rotated", rotated, "failed", len(keys)-rotated)
		if !errs.IsEmpty() {
			return fmt.Errorf("%w: %w", ErrEncryptionFailed, errs.AsError())
		}
		return nil
	})
}

func (v *Vault) rewrap(ctx context.Context, key *EncryptionKey, newKEKID string) error {
	if key.KEKID == newKEKID {
		return nil
	}
	material, err := v.unwrap(ctx, key)
	if err != nil {
		return err
	}
	var wrapped []byte
	err = v.withRetry(ctx, func(ctx context.Context) error {
		var err error
		wrapped, err = v.kms.EncryptKey(ctx, newKEKID, []byte(material))
		return err
	})
	if err != nil {
		return fmt.Errorf("rewrap personal key %s: %w", key.ID, err)
	}

	now := v.now()
	updated := key.Clone()
	updated.WrappedKey = wrapped
	updated.KEKID = newKEKID
	updated.RotatedAt = &now
	if err := v.keys.UpdateKey(ctx, updated); err != nil {
		return err
	}
	if err := v.cache.Delete(ctx, key); err != nil {
		v.logger.WarnContext(ctx, "invalidate cached key", "key_id", key.ID, "error", err)
	}
	v.hook.OnKeyOperation(ctx, monitoring.KeyRotate, key.ID.String(), map[string]any{"kek_id": newKEKID})
	return nil
}
