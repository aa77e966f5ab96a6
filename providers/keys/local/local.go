// Package local wraps personal keys with a master passphrase held by the
// process, read from RC_MASTER_KEY. Wrapping uses the AES256CBC value
// format, so a wrapped key is stored as "AES256CBC$<base64>".
//
// It suits single node deployments and development. Use the AWS or Vault
// providers when the master key must stay outside the application.
package local

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/internal/crypto"
	"github.com/hengadev/remotecare/internal/random"
)

const (
	// EnvMasterKey holds the master passphrase.
	EnvMasterKey = "RC_MASTER_KEY"

	// EnvPreviousMasterKeys lists retired master keys as comma separated
	// alias=passphrase pairs. Personal keys a rotation did not reach stay
	// readable through them.
	EnvPreviousMasterKeys = "RC_PREVIOUS_MASTER_KEYS"
)

// KMS implements remotecare.KeyManagementService with local passphrases.
type KMS struct {
	mu       sync.RWMutex
	fallback string
	keys     map[string]string
	ciphers  *crypto.Registry
}

// New returns a KMS whose aliases all resolve to passphrase unless a key
// was added for them with AddKey.
func New(passphrase string) *KMS {
	return &KMS{
		fallback: passphrase,
		keys:     map[string]string{},
		ciphers:  crypto.NewRegistry(crypto.NewAES256CBC(nil), crypto.NewAES256GCM(nil)),
	}
}

// FromEnvironment builds a KMS from RC_MASTER_KEY and registers the keys
// of RC_PREVIOUS_MASTER_KEYS.
func FromEnvironment() (*KMS, error) {
	passphrase := os.Getenv(EnvMasterKey)
	if passphrase == "" {
		return nil, fmt.Errorf("%w: %s is not set", remotecare.ErrInvalidConfiguration, EnvMasterKey)
	}
	previous, err := parseKeys(os.Getenv(EnvPreviousMasterKeys))
	if err != nil {
		return nil, err
	}
	k := New(passphrase)
	for alias, p := range previous {
		k.AddKey(alias, p)
	}
	return k, nil
}

// parseKeys reads "alias=passphrase,alias=passphrase". A passphrase may
// contain "=" but not ",".
func parseKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, passphrase, ok := strings.Cut(pair, "=")
		alias = strings.TrimSpace(alias)
		if !ok || alias == "" || passphrase == "" {
			return nil, fmt.Errorf("%w: %s: entry %q is not alias=passphrase",
				remotecare.ErrInvalidConfiguration, EnvPreviousMasterKeys, alias)
		}
		keys[alias] = passphrase
	}
	return keys, nil
}

// AddKey registers a passphrase under alias, e.g. the new master key
// during rotation.
func (k *KMS) AddKey(alias, passphrase string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[alias] = passphrase
}

// GetKeyID returns alias once a passphrase is known for it.
func (k *KMS) GetKeyID(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: alias cannot be empty", remotecare.ErrInvalidConfiguration)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[alias]; ok {
		return alias, nil
	}
	if k.fallback == "" {
		return "", fmt.Errorf("%w: no master passphrase for %s", remotecare.ErrKeyNotFound, alias)
	}
	k.keys[alias] = k.fallback
	return alias, nil
}

// CreateKey generates a random passphrase and returns its id.
func (k *KMS) CreateKey(ctx context.Context, description string) (string, error) {
	passphrase, err := random.ID()
	if err != nil {
		return "", fmt.Errorf("generate master passphrase: %w", err)
	}
	id := "local-" + uuid.NewString()
	k.AddKey(id, passphrase)
	return id, nil
}

// EncryptKey wraps plaintext with the passphrase of keyID.
func (k *KMS) EncryptKey(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext cannot be empty", remotecare.ErrEncryptionFailed)
	}
	passphrase, err := k.passphrase(keyID)
	if err != nil {
		return nil, err
	}
	wrapped, err := k.ciphers.Encrypt(string(plaintext), passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remotecare.ErrEncryptionFailed, err)
	}
	return []byte(wrapped), nil
}

// DecryptKey unwraps a key produced by EncryptKey.
func (k *KMS) DecryptKey(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	passphrase, err := k.passphrase(keyID)
	if err != nil {
		return nil, err
	}
	plain, ok, err := k.ciphers.Decrypt(string(ciphertext), passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", remotecare.ErrDecryptionFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: wrapped key is empty", remotecare.ErrDecryptionFailed)
	}
	return []byte(plain), nil
}

func (k *KMS) passphrase(keyID string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	p, ok := k.keys[keyID]
	if !ok {
		return "", fmt.Errorf("%w: master key %s", remotecare.ErrKeyNotFound, keyID)
	}
	return p, nil
}

var _ remotecare.KeyManagementService = (*KMS)(nil)
