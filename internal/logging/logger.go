// Package logging provides structured logging configuration using log/slog.
//
// Request-scoped loggers pick up chi's request ID; import runs carry
// job_id and entity fields so a single run can be followed end to end.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	slogmulti "github.com/samber/slog-multi"
)

// Setup configures the global slog logger.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// When file is non-empty, JSON records are also appended to that file.
// The returned cleanup closes the file and is always safe to call.
func Setup(level, format, file string) (cleanup func() error) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	console := newHandler(os.Stdout, format, opts)
	cleanup = func() error { return nil }

	if file == "" {
		slog.SetDefault(slog.New(console))
		return cleanup
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		slog.SetDefault(slog.New(console))
		slog.Error("failed to open log file, using stdout only", "error", err, "file", file)
		return cleanup
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(console, slog.NewJSONHandler(f, opts))))
	return f.Close
}

// NewWithWriters builds a fan-out logger over arbitrary writers. Used by tests
// and the CLI, which logs text to stderr.
func NewWithWriters(console io.Writer, format string, extra io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	h := newHandler(console, format, opts)
	if extra == nil {
		return slog.New(h)
	}
	return slog.New(slogmulti.Fanout(h, slog.NewJSONHandler(extra, opts)))
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string log level to slog.Level.
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

// FromContext returns the default logger, enriched with the chi request ID
// when ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a request-aware logger with additional structured fields.
//
//	runLogger := logging.WithFields(ctx, "job_id", job.ID, "entity", job.EntityType)
//	runLogger.Info("import started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
