// Package logger configures the application's structured logging.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger.
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance.
	LoggerKey ContextKey = "logger"
)

// New creates a structured console logger with timestamps and caller info.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

// NewWithWriter creates a structured logger with a custom writer.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// ForComponent tags a logger with the component emitting it.
func ForComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithContext adds the logger to the context.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default one.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}
