// Package monitoring builds the structured logger and the observability
// hooks that report vault operations.
package monitoring

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogFormat represents the output format for logs
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatText
)

// ParseLogFormat maps "json" and "text" to a format. Anything else is JSON.
func ParseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, "text") {
		return FormatText
	}
	return FormatJSON
}

// ParseLogLevel maps a level name to a slog level. Unknown names give info.
func ParseLogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// LoggerConfig configures the structured logger
type LoggerConfig struct {
	Level     slog.Level
	Format    LogFormat
	Output    io.Writer
	Component string
	Fields    map[string]any
}

// NewLogger returns a slog logger writing in the configured format.
func NewLogger(config LoggerConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level,
		AddSource: config.Level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	logger := slog.New(handler).With("service", "remotecare")
	if config.Component != "" {
		logger = logger.With("component", config.Component)
	}
	for k, v := range config.Fields {
		logger = logger.With(k, v)
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 8}))
}
