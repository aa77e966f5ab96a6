package hashicorp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/internal/vaultclient"
)

// KVStore implements remotecare.SecretManagementService with the Vault KV v2
// engine. Search keys are stored base64 encoded under "value".
type KVStore struct {
	client       *api.Client
	pathTemplate string
}

// NewKVStore connects with the VAULT_* environment variables.
//
// The KV v2 engine must be enabled in Vault before use:
//
//	vault secrets enable -path=secret kv-v2
func NewKVStore(ctx context.Context) (*KVStore, error) {
	client, err := vaultclient.New(ctx, vaultclient.FromEnvironment())
	if err != nil {
		return nil, err
	}
	return NewKVStoreWithClient(client), nil
}

func NewKVStoreWithClient(client *api.Client) *KVStore {
	return &KVStore{client: client, pathTemplate: remotecare.VaultSecretPathTemplate}
}

// GetStoragePath returns the KV v2 path of a search key, for example
// "secret/data/remotecare/email_search".
func (k *KVStore) GetStoragePath(name string) string {
	return fmt.Sprintf(k.pathTemplate, name)
}

// StoreSecret writes a new version of the secret called name.
func (k *KVStore) StoreSecret(ctx context.Context, name string, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("%w: secret %s must not be empty", remotecare.ErrInvalidConfiguration, name)
	}
	_, err := k.client.Logical().WriteWithContext(ctx, k.GetStoragePath(name), map[string]interface{}{
		"data": map[string]interface{}{
			"value": base64.StdEncoding.EncodeToString(value),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store secret in Vault KV: %w", remotecare.ErrKMSUnavailable, err)
	}
	return nil
}

// GetSecret reads the latest version of the secret called name.
func (k *KVStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	encoded, found, err := k.read(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", remotecare.ErrSearchKeyNotFound, name)
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode secret %s: %w", remotecare.ErrInvalidConfiguration, name, err)
	}
	return value, nil
}

// SecretExists reports whether the secret called name is stored. Only
// transport failures are returned as errors.
func (k *KVStore) SecretExists(ctx context.Context, name string) (bool, error) {
	_, found, err := k.read(ctx, name)
	return found, err
}

func (k *KVStore) read(ctx context.Context, name string) (string, bool, error) {
	secret, err := k.client.Logical().ReadWithContext(ctx, k.GetStoragePath(name))
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read secret from Vault KV: %w", remotecare.ErrKMSUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return "", false, nil
	}
	// KV v2 wraps the stored fields in "data"
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", false, nil
	}
	value, ok := data["value"].(string)
	return value, ok, nil
}

var _ remotecare.SecretManagementService = (*KVStore)(nil)
