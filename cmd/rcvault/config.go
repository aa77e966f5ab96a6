package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hengadev/remotecare"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the rcvault configuration file.
type Config struct {
	KEKAlias        string   `yaml:"kek_alias"`
	Cipher          string   `yaml:"cipher"`
	SearchKeys      []string `yaml:"search_keys"`
	Debug           bool     `yaml:"debug"`
	DisableAuditing bool     `yaml:"disable_auditing"`

	Log     LogConfig     `yaml:"log"`
	KMS     KMSConfig     `yaml:"kms"`
	Secrets SecretsConfig `yaml:"secrets"`
	Store   StoreConfig   `yaml:"store"`
	Cache   CacheConfig   `yaml:"cache"`
	Audit   AuditConfig   `yaml:"audit"`
	Server  ServerConfig  `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// KMSConfig selects the master key provider: local, aws or hashicorp.
type KMSConfig struct {
	Provider string `yaml:"provider"`
	Region   string `yaml:"region"`
}

// SecretsConfig selects the search key provider: env, aws or hashicorp.
type SecretsConfig struct {
	Provider string   `yaml:"provider"`
	Region   string   `yaml:"region"`
	Prefix   string   `yaml:"prefix"`
	EnvFiles []string `yaml:"env_files"`
}

// StoreConfig selects where personal keys and audit entries live: sqlite
// or postgres.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuditConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Log:     LogConfig{Level: "info", Format: "json"},
		KMS:     KMSConfig{Provider: "local"},
		Secrets: SecretsConfig{Provider: "env"},
		Store:   StoreConfig{Driver: "sqlite", DSN: "rcvault.db"},
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
	}
}

// LoadConfig reads the optional .env file and the YAML file at path, then
// applies RC_* overrides from the environment. A missing file at either
// path is not an error.
func LoadConfig(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if v := os.Getenv(remotecare.EnvKEKAlias); v != "" {
		cfg.KEKAlias = v
	}
	if v := os.Getenv(remotecare.EnvCipher); v != "" {
		cfg.Cipher = v
	}
	if v := os.Getenv("RC_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("RC_REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	return cfg, nil
}

// Vault returns the library configuration.
func (c Config) Vault() remotecare.Config {
	return remotecare.Config{
		KEKAlias:        c.KEKAlias,
		Cipher:          c.Cipher,
		SearchKeys:      c.SearchKeys,
		Debug:           c.Debug,
		DisableAuditing: c.DisableAuditing,
		KeyCacheTTL:     c.Cache.TTL,
	}
}
