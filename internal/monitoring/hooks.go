package monitoring

import (
	"context"
	"log/slog"
	"time"
)

// ObservabilityHook defines hooks for monitoring vault operations
type ObservabilityHook interface {
	// Called before processing starts
	OnProcessStart(ctx context.Context, operation string, metadata map[string]any)

	// Called after processing completes (success or failure)
	OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any)

	// Called when errors occur
	OnError(ctx context.Context, operation string, err error, metadata map[string]any)

	// Called for key operations
	OnKeyOperation(ctx context.Context, operation string, keyID string, metadata map[string]any)
}

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnKeyOperation(ctx context.Context, operation string, keyID string, metadata map[string]any) {
}

// LoggingObservabilityHook logs all operations
type LoggingObservabilityHook struct {
	logger *slog.Logger
}

// NewLoggingObservabilityHook creates a new logging observability hook
func NewLoggingObservabilityHook(logger *slog.Logger) *LoggingObservabilityHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObservabilityHook{logger: logger}
}

func (l *LoggingObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	l.logger.DebugContext(ctx, "operation started", "operation", operation, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	if err != nil {
		l.logger.ErrorContext(ctx, "operation failed", "operation", operation, "duration", duration, "error", err, "metadata", metadata)
		return
	}
	l.logger.DebugContext(ctx, "operation completed", "operation", operation, "duration", duration, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	l.logger.ErrorContext(ctx, "operation error", "operation", operation, "error", err, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnKeyOperation(ctx context.Context, operation string, keyID string, metadata map[string]any) {
	l.logger.InfoContext(ctx, "key operation", "operation", operation, "key_id", keyID, "metadata", metadata)
}

// CompositeObservabilityHook fans out to several hooks.
type CompositeObservabilityHook struct {
	hooks []ObservabilityHook
}

// NewCompositeObservabilityHook creates a new composite observability hook
func NewCompositeObservabilityHook(hooks ...ObservabilityHook) *CompositeObservabilityHook {
	return &CompositeObservabilityHook{hooks: hooks}
}

func (c *CompositeObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	for _, h := range c.hooks {
		h.OnProcessStart(ctx, operation, metadata)
	}
}

func (c *CompositeObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	for _, h := range c.hooks {
		h.OnProcessComplete(ctx, operation, duration, err, metadata)
	}
}

func (c *CompositeObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	for _, h := range c.hooks {
		h.OnError(ctx, operation, err, metadata)
	}
}

func (c *CompositeObservabilityHook) OnKeyOperation(ctx context.Context, operation string, keyID string, metadata map[string]any) {
	for _, h := range c.hooks {
		h.OnKeyOperation(ctx, operation, keyID, metadata)
	}
}
