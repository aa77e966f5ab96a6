package remotecare

// Test helpers for this module and for applications embedding a Vault.

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"

	"github.com/hengadev/remotecare/internal/monitoring"
	"github.com/hengadev/remotecare/internal/random"
)

// SimpleTestKMS is an in-memory KeyManagementService. Every alias resolves
// to its own AES-256 master key, created on first use.
type SimpleTestKMS struct {
	mu      sync.Mutex
	aliases map[string]string
	keys    map[string][]byte
}

func NewSimpleTestKMS() *SimpleTestKMS {
	return &SimpleTestKMS{
		aliases: map[string]string{},
		keys:    map[string][]byte{},
	}
}

func (s *SimpleTestKMS) GetKeyID(ctx context.Context, alias string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.aliases[alias]; ok {
		return id, nil
	}
	id, err := s.createLocked()
	if err != nil {
		return "", err
	}
	s.aliases[alias] = id
	return id, nil
}

func (s *SimpleTestKMS) CreateKey(ctx context.Context, description string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *SimpleTestKMS) createLocked() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	id := fmt.Sprintf("test-key-%d", len(s.keys)+1)
	s.keys[id] = key
	return id, nil
}

func (s *SimpleTestKMS) EncryptKey(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	gcm, err := s.gcm(keyID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *SimpleTestKMS) DecryptKey(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	gcm, err := s.gcm(keyID)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (s *SimpleTestKMS) gcm(keyID string) (cipher.AEAD, error) {
	s.mu.Lock()
	key, ok := s.keys[keyID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: master key %s", ErrKeyNotFound, keyID)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// NewTestSecretStore returns an in-memory secret store holding a random
// value for every default search key.
func NewTestSecretStore(t testing.TB) *InMemorySecretStore {
	t.Helper()
	store := NewInMemorySecretStore()
	for _, name := range DefaultSearchKeys {
		secret, err := random.ID()
		if err != nil {
			t.Fatalf("generate search key %s: %v", name, err)
		}
		if err := store.StoreSecret(context.Background(), name, []byte(secret)); err != nil {
			t.Fatalf("store search key %s: %v", name, err)
		}
	}
	return store
}

// NewTestVault creates a Vault backed by SimpleTestKMS and in-memory stores.
// Options are applied after the defaults.
func NewTestVault(t testing.TB, opts ...Option) *Vault {
	t.Helper()
	defaults := []Option{
		WithKeyStore(NewInMemoryKeyStore()),
		WithLogger(monitoring.Discard()),
		WithRetryConfig(RetryConfig{MaxAttempts: 1}),
	}
	v, err := NewVault(context.Background(), NewSimpleTestKMS(), NewTestSecretStore(t),
		Config{KEKAlias: "test-kek"}, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("create test vault: %v", err)
	}
	return v
}
