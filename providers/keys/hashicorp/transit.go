package hashicorp

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/internal/vaultclient"
)

// TransitService implements remotecare.KeyManagementService using the
// HashiCorp Vault transit engine. Personal keys are wrapped by a transit key
// and never stored in Vault.
type TransitService struct {
	client *api.Client
	mount  string
}

// NewTransitService connects with the VAULT_* environment variables.
//
// The transit engine must be enabled in Vault before use:
//
//	vault secrets enable transit
//	vault write -f transit/keys/remotecare
func NewTransitService(ctx context.Context) (*TransitService, error) {
	client, err := vaultclient.New(ctx, vaultclient.FromEnvironment())
	if err != nil {
		return nil, err
	}
	return NewTransitServiceWithClient(client), nil
}

// NewTransitServiceWithClient uses an existing client and the default
// "transit" mount.
func NewTransitServiceWithClient(client *api.Client) *TransitService {
	return &TransitService{client: client, mount: "transit"}
}

// GetKeyID checks that the transit key exists. In transit the alias is the
// key name.
func (t *TransitService) GetKeyID(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: alias cannot be empty", remotecare.ErrInvalidConfiguration)
	}
	resp, err := t.client.Logical().ReadWithContext(ctx, t.path("keys", alias))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read transit key '%s': %w", remotecare.ErrKMSUnavailable, alias, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: transit key '%s'", remotecare.ErrKeyNotFound, alias)
	}
	return alias, nil
}

// CreateKey creates an aes256-gcm96 transit key named description.
func (t *TransitService) CreateKey(ctx context.Context, description string) (string, error) {
	if description == "" {
		return "", fmt.Errorf("%w: description (key name) cannot be empty", remotecare.ErrInvalidConfiguration)
	}
	_, err := t.client.Logical().WriteWithContext(ctx, t.path("keys", description), map[string]interface{}{
		"type": "aes256-gcm96",
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to create transit key '%s': %w", remotecare.ErrKMSUnavailable, description, err)
	}
	return description, nil
}

// EncryptKey wraps a personal key. The result is Vault's "vault:v1:..." text.
func (t *TransitService) EncryptKey(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext cannot be empty", remotecare.ErrEncryptionFailed)
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: keyID cannot be empty", remotecare.ErrInvalidConfiguration)
	}

	resp, err := t.client.Logical().WriteWithContext(ctx, t.path("encrypt", keyID), map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encrypt with key '%s': %w", remotecare.ErrKMSUnavailable, keyID, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault transit encrypt", remotecare.ErrEncryptionFailed)
	}
	ciphertext, ok := resp.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: ciphertext not found in response", remotecare.ErrEncryptionFailed)
	}
	return []byte(ciphertext), nil
}

// DecryptKey unwraps a personal key produced by EncryptKey.
func (t *TransitService) DecryptKey(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext cannot be empty", remotecare.ErrDecryptionFailed)
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: keyID cannot be empty", remotecare.ErrInvalidConfiguration)
	}

	resp, err := t.client.Logical().WriteWithContext(ctx, t.path("decrypt", keyID), map[string]interface{}{
		"ciphertext": string(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt with key '%s': %w", remotecare.ErrKMSUnavailable, keyID, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault transit decrypt", remotecare.ErrDecryptionFailed)
	}
	encoded, ok := resp.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: plaintext not found in response", remotecare.ErrDecryptionFailed)
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode plaintext: %w", remotecare.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func (t *TransitService) path(op, name string) string {
	return fmt.Sprintf("%s/%s/%s", t.mount, op, name)
}

var _ remotecare.KeyManagementService = (*TransitService)(nil)
