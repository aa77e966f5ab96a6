package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/audit/kafka"
	rediscache "github.com/hengadev/remotecare/cache/redis"
	"github.com/hengadev/remotecare/internal/monitoring"
	"github.com/hengadev/remotecare/internal/sqlstore"
	awskms "github.com/hengadev/remotecare/providers/keys/aws"
	"github.com/hengadev/remotecare/providers/keys/hashicorp"
	"github.com/hengadev/remotecare/providers/keys/local"
	awssecrets "github.com/hengadev/remotecare/providers/secrets/aws"
	"github.com/hengadev/remotecare/providers/secrets/env"
	vaultkv "github.com/hengadev/remotecare/providers/secrets/hashicorp"
	"github.com/hengadev/remotecare/store/postgres"
	"github.com/hengadev/remotecare/store/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
)

// EnvNewMasterKey holds the passphrase of the new local master key during
// rotation.
const EnvNewMasterKey = "RC_NEW_MASTER_KEY"

// app holds everything a command may need. Optional parts are nil when not
// configured.
type app struct {
	cfg      Config
	logger   *slog.Logger
	vault    *remotecare.Vault
	kms      remotecare.KeyManagementService
	store    *sqlstore.Store
	cache    *rediscache.KeyCache
	kafka    *kgo.Client
	registry *prometheus.Registry
}

func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	return monitoring.NewLogger(monitoring.LoggerConfig{
		Level:     monitoring.ParseLogLevel(cfg.Level),
		Format:    monitoring.ParseLogFormat(cfg.Format),
		Output:    w,
		Component: "rcvault",
	})
}

// setup connects the configured providers and builds the vault. Close
// releases them.
func setup(ctx context.Context, cfg Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if a.kms, err = newKMS(ctx, cfg.KMS); err != nil {
		return nil, err
	}
	secrets, err := newSecrets(ctx, cfg.Secrets)
	if err != nil {
		return nil, err
	}
	if a.store, err = openStore(ctx, cfg.Store); err != nil {
		return nil, err
	}

	opts := []remotecare.Option{
		remotecare.WithKeyStore(a.store),
		remotecare.WithAuditStore(a.store),
		remotecare.WithLogger(logger),
		remotecare.WithObservabilityHook(remotecare.CombineHooks(
			remotecare.NewLoggingHook(logger),
			remotecare.NewMetricsHook(remotecare.NewMetrics(a.registry)),
		)),
	}
	if cfg.Cache.RedisURL != "" {
		client, err := rediscache.Dial(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		a.cache = rediscache.New(client, cfg.Cache.TTL)
		opts = append(opts, remotecare.WithKeyCache(a.cache))
	}
	if len(cfg.Audit.Brokers) > 0 {
		if a.kafka, err = kafka.NewClient(kafka.Config{Brokers: cfg.Audit.Brokers, Topic: cfg.Audit.Topic}); err != nil {
			return nil, err
		}
		opts = append(opts, remotecare.WithAuditPublisher(kafka.NewPublisher(a.kafka, cfg.Audit.Topic)))
	}

	if a.vault, err = remotecare.NewVault(ctx, a.kms, secrets, cfg.Vault(), opts...); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}

func newKMS(ctx context.Context, cfg KMSConfig) (remotecare.KeyManagementService, error) {
	switch cfg.Provider {
	case "", "local":
		kms, err := local.FromEnvironment()
		if err != nil {
			return nil, err
		}
		return kms, nil
	case "aws":
		return awskms.New(ctx, awskms.Config{Region: cfg.Region})
	case "hashicorp":
		return hashicorp.NewTransitService(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown kms provider %q", remotecare.ErrInvalidConfiguration, cfg.Provider)
	}
}

func newSecrets(ctx context.Context, cfg SecretsConfig) (remotecare.SecretManagementService, error) {
	switch cfg.Provider {
	case "", "env":
		return env.New(cfg.EnvFiles...)
	case "aws":
		return awssecrets.NewSecretsManagerStore(ctx, awssecrets.Config{Region: cfg.Region, Prefix: cfg.Prefix})
	case "hashicorp":
		return vaultkv.NewKVStore(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown secrets provider %q", remotecare.ErrInvalidConfiguration, cfg.Provider)
	}
}

func openStore(ctx context.Context, cfg StoreConfig) (*sqlstore.Store, error) {
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s.Store, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s.Store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", remotecare.ErrInvalidConfiguration, cfg.Driver)
	}
}

// addRotationKey makes the new local master key known before a rotation.
func (a *app) addRotationKey(alias string) {
	if kms, ok := a.kms.(*local.KMS); ok {
		if passphrase := os.Getenv(EnvNewMasterKey); passphrase != "" {
			kms.AddKey(alias, passphrase)
		}
	}
}
