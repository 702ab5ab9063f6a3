// Package logging builds the slog logger used across qw.
//
// qw is silent by default: with no level configured, New returns a logger
// that discards everything. Passing --loglevel turns on text output to the
// given writer (normally stderr, so JSON results on stdout stay clean).
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Levels lists the accepted --loglevel values.
var Levels = []string{"error", "warning", "info", "debug"}

// New creates a text *slog.Logger writing to w at the given level.
// An empty level yields a logger that discards all output.
func New(level string, w io.Writer) *slog.Logger {
	if strings.TrimSpace(level) == "" {
		return Discard()
	}
	lvl := parseLevel(level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Valid reports whether level is an accepted --loglevel value.
func Valid(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "error", "warning", "warn", "info", "debug":
		return true
	}
	return false
}

// contextKey is the unexported key type for storing loggers in context.
type contextKey struct{}

// WithLogger returns a new context with the given logger stored in it.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a *slog.Logger from the context.
// If no logger is stored, it returns a discarding logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return Discard()
}

// parseLevel converts a level string to slog.Level.
// Unrecognized values default to slog.LevelInfo.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
