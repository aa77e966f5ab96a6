package remotecare

import (
	"context"

	"github.com/google/uuid"
)

// KeyManagementService wraps and unwraps personal encryption keys with a
// master key (KEK) that never leaves the KMS.
//
// Implementations:
//   - local passphrase: github.com/hengadev/remotecare/providers/keys/local
//   - HashiCorp Vault transit: github.com/hengadev/remotecare/providers/keys/hashicorp
//   - AWS KMS: github.com/hengadev/remotecare/providers/keys/aws
//
// SecretManagementService is the separate contract for stored secret values.
type KeyManagementService interface {
	// GetKeyID resolves a key alias to a key ID.
	//
	// For AWS KMS, this resolves an alias like "alias/my-key" to the underlying key ID.
	// For HashiCorp Vault, this returns the key name directly.
	GetKeyID(ctx context.Context, alias string) (string, error)

	// CreateKey creates a new master key and returns its ID.
	CreateKey(ctx context.Context, description string) (string, error)

	// EncryptKey wraps a personal key with the master key identified by keyID.
	EncryptKey(ctx context.Context, keyID string, plaintext []byte) ([]byte, error)

	// DecryptKey unwraps a personal key produced by EncryptKey.
	DecryptKey(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// SecretManagementService stores the search keys used for lookup columns.
//
// Implementations:
//   - environment / .env: github.com/hengadev/remotecare/providers/secrets/env
//   - HashiCorp Vault KV v2: github.com/hengadev/remotecare/providers/secrets/hashicorp
//   - AWS Secrets Manager: github.com/hengadev/remotecare/providers/secrets/aws
//   - in memory: NewInMemorySecretStore
type SecretManagementService interface {
	// StoreSecret creates or replaces the secret called name.
	StoreSecret(ctx context.Context, name string, value []byte) error

	// GetSecret returns the secret called name. A missing secret is
	// reported with ErrSearchKeyNotFound.
	GetSecret(ctx context.Context, name string) ([]byte, error)

	// SecretExists reports whether the secret called name is stored.
	SecretExists(ctx context.Context, name string) (bool, error)

	// GetStoragePath returns the provider specific location of name.
	GetStoragePath(name string) string
}

// KeyStore persists wrapped personal keys. Implementations return
// ErrKeyNotFound for unknown keys and ErrKeyExists when an owner already has
// a key.
type KeyStore interface {
	CreateKey(ctx context.Context, key *EncryptionKey) error
	GetKey(ctx context.Context, id uuid.UUID) (*EncryptionKey, error)
	GetKeyByOwner(ctx context.Context, ownerID string) (*EncryptionKey, error)
	ListKeys(ctx context.Context) ([]*EncryptionKey, error)
	UpdateKey(ctx context.Context, key *EncryptionKey) error
}

// KeyCache holds wrapped personal keys between store reads. A miss is
// reported with found == false, not with an error.
type KeyCache interface {
	Get(ctx context.Context, id uuid.UUID) (key *EncryptionKey, found bool, err error)
	GetByOwner(ctx context.Context, ownerID string) (key *EncryptionKey, found bool, err error)
	Set(ctx context.Context, key *EncryptionKey) error
	Delete(ctx context.Context, key *EncryptionKey) error
}

// KeyHolder is implemented by records that carry encrypted fields. The
// returned id selects the personal key used for their values and audit
// entries.
type KeyHolder interface {
	EncryptionKeyID() uuid.UUID
}
