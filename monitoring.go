package remotecare

import (
	"log/slog"

	"github.com/hengadev/remotecare/internal/monitoring"
	"github.com/hengadev/remotecare/internal/reliability"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-exported so callers outside this module can configure a Vault.
type (
	ObservabilityHook = monitoring.ObservabilityHook
	LoggerConfig      = monitoring.LoggerConfig
	LogFormat         = monitoring.LogFormat
	Metrics           = monitoring.Metrics
	RetryConfig       = reliability.RetryConfig
)

const (
	LogFormatJSON = monitoring.FormatJSON
	LogFormatText = monitoring.FormatText
)

// NewLogger builds the structured logger used by the vault and its tools.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	return monitoring.NewLogger(cfg)
}

// NewLoggingHook reports operations to logger.
func NewLoggingHook(logger *slog.Logger) ObservabilityHook {
	return monitoring.NewLoggingObservabilityHook(logger)
}

// NewMetrics registers the Prometheus collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return monitoring.NewMetrics(reg)
}

// NewMetricsHook reports operations to m.
func NewMetricsHook(m *Metrics) ObservabilityHook {
	return monitoring.NewMetricsObservabilityHook(m)
}

// CombineHooks calls every hook in order.
func CombineHooks(hooks ...ObservabilityHook) ObservabilityHook {
	return monitoring.NewCompositeObservabilityHook(hooks...)
}

// DefaultRetryConfig returns the retry settings used for key service calls.
func DefaultRetryConfig() RetryConfig {
	return reliability.DefaultRetryConfig()
}
