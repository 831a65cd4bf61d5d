// Package logger wraps log/slog with redaction of sensitive attributes and
// request scoped fields.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level    string
	Format   string
	Output   io.Writer
	Sampling SamplingConfig
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Format:   "json",
		Output:   os.Stdout,
		Sampling: DefaultSamplingConfig(),
	}
}

// New creates a new Logger instance.
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level == slog.LevelDebug,
		ReplaceAttr: sanitizeAttr,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}
	handler = NewSamplingHandler(handler, cfg.Sampling)

	return &Logger{Logger: slog.New(handler)}
}

// sensitiveKeys are masked wherever they appear in an attribute key.
var sensitiveKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"authorization",
	"cookie",
	"api_key",
	"apikey",
	"private_key",
	"dsn",
	"connection_string",
	"credential",
}

// sanitizeAttr masks sensitive values in log attributes.
func sanitizeAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// NewDefault creates a new Logger with default configuration.
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// NewDevelopment creates a logger configured for development.
func NewDevelopment() *Logger {
	return New(Config{Level: "debug", Format: "text", Output: os.Stdout})
}

// NewNop creates a logger that discards all output.
func NewNop() *Logger {
	return New(Config{Level: "error", Format: "json", Output: io.Discard})
}

// With returns a new Logger with the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ContextKey is the type of the context keys read by WithContext. The HTTP
// middleware stores values under these keys.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyActorID   ContextKey = "actor_id"
)

// WithContext returns a new Logger carrying the request and actor IDs found
// in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With(slog.String("request_id", requestID))
	}
	if actorID, ok := ctx.Value(ContextKeyActorID).(string); ok && actorID != "" {
		logger = logger.With(slog.String("actor_id", actorID))
	}

	return &Logger{Logger: logger}
}

// WithError returns a new Logger with the error attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any("error", err))}
}

// WithField returns a new Logger with a single field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Any(key, value))}
}

// SetDefault sets this logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
