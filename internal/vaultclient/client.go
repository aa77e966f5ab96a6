// Package vaultclient builds the HashiCorp Vault client shared by the
// transit key provider and the KV secret provider.
package vaultclient

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/vault/api"
	"github.com/hengadev/remotecare"
)

// Config holds the connection settings. FromEnvironment fills it from the
// VAULT_* variables.
type Config struct {
	Address   string
	Namespace string
	Token     string
	RoleID    string
	SecretID  string
}

// FromEnvironment reads:
//   - VAULT_ADDR: Vault server address (required)
//   - VAULT_NAMESPACE: namespace for HCP Vault (optional)
//   - VAULT_TOKEN: direct token (optional)
//   - VAULT_ROLE_ID, VAULT_SECRET_ID: AppRole credentials (optional)
func FromEnvironment() Config {
	return Config{
		Address:   os.Getenv("VAULT_ADDR"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Token:     os.Getenv("VAULT_TOKEN"),
		RoleID:    os.Getenv("VAULT_ROLE_ID"),
		SecretID:  os.Getenv("VAULT_SECRET_ID"),
	}
}

// New creates an authenticated client. A token is used when set, otherwise
// AppRole credentials are exchanged for one.
func New(ctx context.Context, cfg Config) (*api.Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: VAULT_ADDR environment variable is required", remotecare.ErrInvalidConfiguration)
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.HttpClient.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Vault client: %w", remotecare.ErrKMSUnavailable, err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	if cfg.Token != "" {
		client.SetToken(cfg.Token)
		return client, nil
	}

	if cfg.RoleID != "" && cfg.SecretID != "" {
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to login with AppRole: %w", remotecare.ErrKMSUnavailable, err)
		}
		if resp == nil || resp.Auth == nil {
			return nil, fmt.Errorf("%w: no auth info returned from AppRole login", remotecare.ErrInvalidConfiguration)
		}
		client.SetToken(resp.Auth.ClientToken)
		return client, nil
	}

	return nil, fmt.Errorf("%w: no Vault authentication method configured (set VAULT_TOKEN or VAULT_ROLE_ID+VAULT_SECRET_ID)",
		remotecare.ErrInvalidConfiguration)
}
