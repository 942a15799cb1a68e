// Package observability provides structured logging, metrics collection,
// health checks and context propagation for mosaic.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// LogFormat selects the handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogLevel is a slog level name: debug, info, warn or error.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool

	// Service, Version and Environment are attached to every record when set.
	Service     string
	Version     string
	Environment string
}

// LogConfigFor derives the logger settings of a process. Development logs
// text without source locations; every other environment logs JSON with
// them. Explicit level and format values win.
func LogConfigFor(appEnv, level, format, service, version string) LogConfig {
	cfg := LogConfig{
		Level:       LogLevelInfo,
		Format:      LogFormatJSON,
		AddSource:   true,
		Service:     service,
		Version:     version,
		Environment: appEnv,
	}
	if appEnv == "" || appEnv == "development" {
		cfg.Format = LogFormatText
		cfg.AddSource = false
	}
	if level != "" {
		cfg.Level = LogLevel(level)
	}
	if format != "" {
		cfg.Format = LogFormat(format)
	}
	return cfg
}

// NewLogger builds a logger whose records carry the static service
// attributes and the correlation, session and user ids found in the
// context they are logged with.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	var static []slog.Attr
	for _, a := range []struct{ key, value string }{
		{"service", cfg.Service},
		{"version", cfg.Version},
		{"env", cfg.Environment},
	} {
		if a.value != "" {
			static = append(static, slog.String(a.key, a.value))
		}
	}
	if len(static) > 0 {
		handler = handler.WithAttrs(static)
	}
	return slog.New(contextHandler{next: handler})
}

// parseLevel falls back to info for unknown names.
func parseLevel(level LogLevel) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// contextHandler copies request-scoped ids from the context onto each record.
type contextHandler struct {
	next slog.Handler
}

func (h contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, kv := range [...]struct{ key, value string }{
		{CorrelationIDKey, CorrelationIDFromContext(ctx)},
		{SessionIDKey, SessionIDFromContext(ctx)},
		{UserIDKey, UserIDFromContext(ctx)},
	} {
		if kv.value != "" {
			r.AddAttrs(slog.String(kv.key, kv.value))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}
