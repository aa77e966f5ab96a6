package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Key operation names reported through OnKeyOperation.
const (
	KeyCreate    = "create"
	KeyUnwrap    = "unwrap"
	KeyRotate    = "rotate"
	KeyCacheHit  = "cache_hit"
	KeyCacheMiss = "cache_miss"
)

// Metrics holds the Prometheus collectors for vault operations.
type Metrics struct {
	Operations     *prometheus.CounterVec
	Errors         *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	KeyOperations  *prometheus.CounterVec
	AuditEntries   *prometheus.CounterVec
	KeyCacheLookup *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors with reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecare_operations_total",
			Help: "Total number of vault operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecare_operation_errors_total",
			Help: "Total number of errors reported by vault operations",
		}, []string{"operation"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remotecare_operation_duration_seconds",
			Help:    "Duration of vault operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		KeyOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecare_key_operations_total",
			Help: "Total number of personal key operations",
		}, []string{"operation"}),
		AuditEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecare_audit_entries_total",
			Help: "Total number of audit entries by destination",
		}, []string{"destination"}),
		KeyCacheLookup: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotecare_key_cache_lookups_total",
			Help: "Personal key cache lookups by result",
		}, []string{"result"}),
	}
}

// MetricsObservabilityHook records hook events in Prometheus.
type MetricsObservabilityHook struct {
	metrics *Metrics
}

// NewMetricsObservabilityHook creates a hook backed by m.
func NewMetricsObservabilityHook(m *Metrics) *MetricsObservabilityHook {
	return &MetricsObservabilityHook{metrics: m}
}

func (m *MetricsObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
}

func (m *MetricsObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.metrics.Operations.WithLabelValues(operation, outcome).Inc()
	m.metrics.Duration.WithLabelValues(operation).Observe(duration.Seconds())

	if dest, ok := strings.CutPrefix(operation, "audit."); ok && err == nil {
		m.metrics.AuditEntries.WithLabelValues(dest).Inc()
	}
}

func (m *MetricsObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	m.metrics.Errors.WithLabelValues(operation).Inc()
}

func (m *MetricsObservabilityHook) OnKeyOperation(ctx context.Context, operation string, keyID string, metadata map[string]any) {
	switch operation {
	case KeyCacheHit:
		m.metrics.KeyCacheLookup.WithLabelValues("hit").Inc()
	case KeyCacheMiss:
		m.metrics.KeyCacheLookup.WithLabelValues("miss").Inc()
	default:
		m.metrics.KeyOperations.WithLabelValues(operation).Inc()
	}
}
