package remotecare

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type cachedKey struct {
	key     *EncryptionKey
	expires time.Time
}

// InMemoryKeyCache is the default KeyCache. Entries expire after ttl when
// ttl is positive.
type InMemoryKeyCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	byID    map[uuid.UUID]cachedKey
	byOwner map[string]uuid.UUID
}

func NewInMemoryKeyCache(ttl time.Duration) *InMemoryKeyCache {
	return &InMemoryKeyCache{
		ttl:     ttl,
		byID:    map[uuid.UUID]cachedKey{},
		byOwner: map[string]uuid.UUID{},
	}
}

func (c *InMemoryKeyCache) Get(ctx context.Context, id uuid.UUID) (*EncryptionKey, bool, error) {
	c.mu.RLock()
	entry, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		_ = c.Delete(ctx, entry.key)
		return nil, false, nil
	}
	return entry.key.Clone(), true, nil
}

func (c *InMemoryKeyCache) GetByOwner(ctx context.Context, ownerID string) (*EncryptionKey, bool, error) {
	c.mu.RLock()
	id, ok := c.byOwner[ownerID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return c.Get(ctx, id)
}

func (c *InMemoryKeyCache) Set(ctx context.Context, key *EncryptionKey) error {
	entry := cachedKey{key: key.Clone()}
	if c.ttl > 0 {
		entry.expires = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[key.ID] = entry
	if key.OwnerID != "" {
		c.byOwner[key.OwnerID] = key.ID
	}
	return nil
}

func (c *InMemoryKeyCache) Delete(ctx context.Context, key *EncryptionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, key.ID)
	if id, ok := c.byOwner[key.OwnerID]; ok && id == key.ID {
		delete(c.byOwner, key.OwnerID)
	}
	return nil
}

// InMemoryKeyStore keeps wrapped keys in memory. It is meant for tests and
// for tools that do not persist keys.
type InMemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*EncryptionKey
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{keys: map[uuid.UUID]*EncryptionKey{}}
}

func (s *InMemoryKeyStore) CreateKey(ctx context.Context, key *EncryptionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key.ID)
	}
	for _, k := range s.keys {
		if key.OwnerID != "" && k.OwnerID == key.OwnerID {
			return fmt.Errorf("%w: owner %s", ErrKeyExists, key.OwnerID)
		}
	}
	s.keys[key.ID] = key.Clone()
	return nil
}

func (s *InMemoryKeyStore) GetKey(ctx context.Context, id uuid.UUID) (*EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return k.Clone(), nil
}

func (s *InMemoryKeyStore) GetKeyByOwner(ctx context.Context, ownerID string) (*EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.OwnerID == ownerID {
			return k.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: owner %s", ErrKeyNotFound, ownerID)
}

func (s *InMemoryKeyStore) ListKeys(ctx context.Context) ([]*EncryptionKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*EncryptionKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryKeyStore) UpdateKey(ctx context.Context, key *EncryptionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key.ID)
	}
	s.keys[key.ID] = key.Clone()
	return nil
}

// InMemorySecretStore implements SecretManagementService with a map.
type InMemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{secrets: map[string][]byte{}}
}

func (s *InMemorySecretStore) StoreSecret(ctx context.Context, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = bytes.Clone(value)
	return nil
}

func (s *InMemorySecretStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSearchKeyNotFound, name)
	}
	return bytes.Clone(v), nil
}

func (s *InMemorySecretStore) SecretExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[name]
	return ok, nil
}

func (s *InMemorySecretStore) GetStoragePath(name string) string {
	return "memory://" + name
}
