package remotecare

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadConfigFromEnvironment loads configuration from environment variables.
//
// Required environment variables:
//   - RC_KEK_ALIAS: master key identifier
//
// Optional environment variables:
//   - RC_SEARCH_KEYS: comma separated search key names
//   - RC_CIPHER: AES256CBC or AES256GCM
//   - RC_DEBUG, RC_DISABLE_AUDITING: booleans
//   - RC_KEY_CACHE_TTL: duration such as "10m"
//   - RC_ROTATION_CONCURRENCY: integer
//
// Example usage:
//
//	cfg, err := remotecare.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vault, err := remotecare.NewVault(ctx, kms, secrets, cfg)
func LoadConfigFromEnvironment() (Config, error) {
	kekAlias := os.Getenv(EnvKEKAlias)
	if kekAlias == "" {
		return Config{}, fmt.Errorf("%w: %s environment variable is required", ErrInvalidConfiguration, EnvKEKAlias)
	}

	cfg := Config{
		KEKAlias: kekAlias,
		Cipher:   os.Getenv(EnvCipher),
	}

	if raw := os.Getenv(EnvSearchKeys); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.SearchKeys = append(cfg.SearchKeys, name)
			}
		}
	}

	var err error
	if cfg.Debug, err = getEnvBool(EnvDebug); err != nil {
		return Config{}, err
	}
	if cfg.DisableAuditing, err = getEnvBool(EnvDisableAuditing); err != nil {
		return Config{}, err
	}
	if raw := os.Getenv(EnvKeyCacheTTL); raw != "" {
		if cfg.KeyCacheTTL, err = time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, EnvKeyCacheTTL, err)
		}
	}
	if raw := os.Getenv(EnvRotationConcurrency); raw != "" {
		if cfg.RotationConcurrency, err = strconv.Atoi(raw); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, EnvRotationConcurrency, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func getEnvBool(key string) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, key, err)
	}
	return v, nil
}
