package remotecare

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/internal/crypto"
	"github.com/hengadev/remotecare/internal/monitoring"
	"github.com/hengadev/remotecare/internal/reliability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/hengadev/remotecare"

// Vault encrypts the personal fields of records with per-owner keys,
// computes their lookup HMACs and writes the audit trail of their changes.
// A Vault is safe for concurrent use.
type Vault struct {
	kms     KeyManagementService
	secrets SecretManagementService
	keys    KeyStore
	cache   KeyCache
	ciphers *crypto.Registry

	kekMu    sync.RWMutex
	kekAlias string
	kekID    string

	searchMu   sync.RWMutex
	searchKeys map[string]string

	auditStore      audit.Store
	publishers      []audit.Publisher
	strictAudit     bool
	auditDisabled   bool
	rotationWorkers int

	logger *slog.Logger
	hook   monitoring.ObservabilityHook
	tracer trace.Tracer
	retry  reliability.RetryPolicy
	loads  singleflight.Group
	now    func() time.Time
}

// NewVault resolves the master key, loads the configured search keys and
// applies opts. A KeyStore must be supplied with WithKeyStore.
func NewVault(ctx context.Context, kms KeyManagementService, secrets SecretManagementService, cfg Config, opts ...Option) (*Vault, error) {
	if kms == nil {
		return nil, fmt.Errorf("%w: KeyManagementService is required", ErrInvalidConfiguration)
	}
	if secrets == nil {
		return nil, fmt.Errorf("%w: SecretManagementService is required", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Vault{
		kms:             kms,
		secrets:         secrets,
		ciphers:         crypto.DefaultRegistry(),
		kekAlias:        cfg.KEKAlias,
		searchKeys:      map[string]string{},
		strictAudit:     cfg.Debug,
		auditDisabled:   cfg.DisableAuditing,
		rotationWorkers: cfg.RotationConcurrency,
		logger:          slog.Default(),
		hook:            &monitoring.NoOpObservabilityHook{},
		tracer:          otel.Tracer(tracerName),
		now:             func() time.Time { return time.Now().UTC() },
		retry: reliability.NewExponentialBackoffPolicy(reliability.RetryConfig{
			ShouldRetry: func(err error, _ int) bool { return IsRetryableError(err) },
		}),
	}
	if err := v.ciphers.Use(cfg.Cipher); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	if v.keys == nil {
		return nil, fmt.Errorf("%w: a KeyStore is required, use WithKeyStore", ErrInvalidConfiguration)
	}
	if v.cache == nil {
		v.cache = NewInMemoryKeyCache(cfg.KeyCacheTTL)
	}

	kekID, err := v.resolveKEK(ctx, cfg.KEKAlias)
	if err != nil {
		return nil, err
	}
	v.kekID = kekID

	for _, name := range cfg.SearchKeys {
		if _, err := v.searchKey(ctx, name); err != nil {
			return nil, fmt.Errorf("load search key %q: %w", name, err)
		}
	}

	v.logger.Info("vault initialised",
		"kek_alias", cfg.KEKAlias,
		"cipher", v.ciphers.Default().Name(),
		"search_keys", len(cfg.SearchKeys),
		"auditing", !v.auditDisabled,
	)
	return v, nil
}

func (v *Vault) resolveKEK(ctx context.Context, alias string) (string, error) {
	var id string
	err := v.withRetry(ctx, func(ctx context.Context) error {
		var err error
		id, err = v.kms.GetKeyID(ctx, alias)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("resolve master key %q: %w", alias, err)
	}
	return id, nil
}

// KEK returns the alias and id of the master key used for new keys.
func (v *Vault) KEK() (alias, id string) {
	v.kekMu.RLock()
	defer v.kekMu.RUnlock()
	return v.kekAlias, v.kekID
}

// Ping checks that the master key still resolves and, when the key store
// supports it, that the store is reachable.
func (v *Vault) Ping(ctx context.Context) error {
	alias, _ := v.KEK()
	if _, err := v.kms.GetKeyID(ctx, alias); err != nil {
		return fmt.Errorf("%w: resolve master key %q: %w", ErrKMSUnavailable, alias, err)
	}
	if p, ok := v.keys.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Cipher returns the name of the cipher used for new values.
func (v *Vault) Cipher() string {
	return v.ciphers.Default().Name()
}

// IsEncrypted reports whether value carries the prefix of a known cipher.
func (v *Vault) IsEncrypted(value string) bool {
	return v.ciphers.IsEncrypted(value)
}

// MaxLength returns the column size for an encrypted value whose plaintext
// has at most n bytes.
func (v *Vault) MaxLength(n int) int {
	return v.ciphers.MaxLength(n)
}

func (v *Vault) withRetry(ctx context.Context, op func(context.Context) error) error {
	executor := reliability.NewRetryExecutor(v.retry)
	executor.SetOnRetryCallback(func(attempt int, delay time.Duration, err error) {
		v.logger.WarnContext(ctx, "retrying key service call", "attempt", attempt, "delay", delay, "error", err)
	})
	return executor.Execute(ctx, op)
}

// observe wraps an operation with a span and the observability hook.
func (v *Vault) observe(ctx context.Context, operation string, metadata map[string]any, fn func(context.Context) error) error {
	attrs := make([]attribute.KeyValue, 0, len(metadata))
	for k, val := range metadata {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
	}
	ctx, span := v.tracer.Start(ctx, "remotecare."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	v.hook.OnProcessStart(ctx, operation, metadata)
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.hook.OnError(ctx, operation, err, metadata)
	}
	v.hook.OnProcessComplete(ctx, operation, time.Since(start), err, metadata)
	return err
}
