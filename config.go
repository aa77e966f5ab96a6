package remotecare

import (
	"fmt"
	"time"

	"github.com/hengadev/remotecare/internal/crypto"
)

// Config holds the configuration for creating a Vault.
//
// Required fields:
//   - KEKAlias: the master key that wraps personal keys
//
// Optional fields (defaults are applied by Validate):
//   - SearchKeys: secrets loaded at start-up (default: DefaultSearchKeys)
//   - Cipher: cipher for new values (default: AES256CBC)
//   - RotationConcurrency: parallel rewraps (default: 4)
//
// Example usage:
//
//	cfg := remotecare.Config{KEKAlias: "alias/remotecare-kek"}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	vault, err := remotecare.NewVault(ctx, kms, secrets, cfg)
type Config struct {
	// KEKAlias is the master key identifier in the KMS.
	//
	// The format depends on the KMS provider:
	//   - AWS KMS: "alias/my-key" or full ARN
	//   - HashiCorp Vault: transit key name
	//   - local: any label, the passphrase comes from RC_MASTER_KEY
	KEKAlias string

	// SearchKeys names the secrets read from the SecretManagementService
	// when the vault starts. Keys used by records but not listed here are
	// loaded on first use.
	SearchKeys []string

	// Cipher is the registered cipher name used for new values.
	Cipher string

	// Debug makes a missing acting user fail the save instead of logging
	// the entry.
	Debug bool

	// DisableAuditing turns off the audit trail, used during automated tests.
	DisableAuditing bool

	// KeyCacheTTL is passed to caches that expire entries. Zero keeps
	// entries until they are invalidated.
	KeyCacheTTL time.Duration

	// RotationConcurrency bounds parallel rewraps during RotateMasterKey.
	RotationConcurrency int
}

// Validate checks that the configuration is valid and applies defaults to optional fields.
func (c *Config) Validate() error {
	if c.KEKAlias == "" {
		return fmt.Errorf("%w: KEKAlias is required", ErrInvalidConfiguration)
	}
	if len(c.KEKAlias) > MaxKEKAliasLength {
		return fmt.Errorf("%w: KEKAlias must be %d characters or less, got %d", ErrInvalidConfiguration, MaxKEKAliasLength, len(c.KEKAlias))
	}
	if c.SearchKeys == nil {
		c.SearchKeys = append([]string(nil), DefaultSearchKeys...)
	}
	for _, name := range c.SearchKeys {
		if name == "" {
			return fmt.Errorf("%w: empty search key name", ErrInvalidConfiguration)
		}
	}
	if c.Cipher == "" {
		c.Cipher = crypto.AES256CBCName
	}
	if _, ok := crypto.DefaultRegistry().Lookup(c.Cipher); !ok {
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfiguration, ErrUnknownCipher, c.Cipher)
	}
	if c.KeyCacheTTL < 0 {
		return fmt.Errorf("%w: KeyCacheTTL must not be negative", ErrInvalidConfiguration)
	}
	if c.RotationConcurrency <= 0 {
		c.RotationConcurrency = DefaultRotationConcurrency
	}
	return nil
}
