// Package logger wraps log/slog with the event helpers the services share.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

// RequestIDKey is the context key RequestID middleware stores the id under.
const RequestIDKey contextKey = "request_id"

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New returns a text logger at debug level for development and a JSON
// logger at info level everywhere else.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// WithContext adds the request id carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return l.With("request_id", requestID)
	}
	return l
}

// With returns a Logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// HTTPRequest logs one served request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// JobStarted logs the start of a background job run.
func (l *Logger) JobStarted(job, runID string) {
	l.Info("job_started",
		slog.String("job", job),
		slog.String("run_id", runID),
	)
}

// JobFinished logs the outcome of a job run. Anything other than
// "succeeded" is logged at warn level.
func (l *Logger) JobFinished(job, runID, status string, durationMs int64, attrs ...any) {
	args := []any{
		slog.String("job", job),
		slog.String("run_id", runID),
		slog.String("status", status),
		slog.Int64("duration_ms", durationMs),
	}
	args = append(args, attrs...)
	if status == "succeeded" {
		l.Info("job_finished", args...)
		return
	}
	l.Warn("job_finished", args...)
}

func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
