package remotecare

import (
	"fmt"
	"log/slog"

	"github.com/hengadev/remotecare/audit"
	"github.com/hengadev/remotecare/internal/reliability"
	"go.opentelemetry.io/otel/trace"
)

type Option func(v *Vault) error

// WithKeyStore sets where wrapped personal keys are persisted.
func WithKeyStore(store KeyStore) Option {
	return func(v *Vault) error {
		if store == nil {
			return fmt.Errorf("%w: nil KeyStore", ErrInvalidConfiguration)
		}
		v.keys = store
		return nil
	}
}

// WithKeyCache replaces the in-memory cache of wrapped keys.
func WithKeyCache(cache KeyCache) Option {
	return func(v *Vault) error {
		if cache == nil {
			return fmt.Errorf("%w: nil KeyCache", ErrInvalidConfiguration)
		}
		v.cache = cache
		return nil
	}
}

// WithAuditStore sets where audit entries are written. Without a store
// entries are written to the logger.
func WithAuditStore(store audit.Store) Option {
	return func(v *Vault) error {
		v.auditStore = store
		return nil
	}
}

// WithAuditPublisher forwards stored entries to p.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(v *Vault) error {
		if p == nil {
			return fmt.Errorf("%w: nil audit publisher", ErrInvalidConfiguration)
		}
		v.publishers = append(v.publishers, p)
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) error {
		if logger != nil {
			v.logger = logger
		}
		return nil
	}
}

func WithObservabilityHook(hook ObservabilityHook) Option {
	return func(v *Vault) error {
		if hook != nil {
			v.hook = hook
		}
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(v *Vault) error {
		if tracer != nil {
			v.tracer = tracer
		}
		return nil
	}
}

// WithRetryConfig changes how key service calls are retried.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(v *Vault) error {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = func(err error, _ int) bool { return IsRetryableError(err) }
		}
		v.retry = reliability.NewExponentialBackoffPolicy(cfg)
		return nil
	}
}
