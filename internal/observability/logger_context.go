// Package observability carries request-scoped log context between layers
// and wraps outbound calls with adaptive deadlines.
package observability

import (
	"context"
	"log/slog"
)

type (
	loggerContextKey    struct{}
	requestIDContextKey struct{}
	clientContextKey    struct{}
)

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or the default
// slog logger when none is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithRequestID stores the request_id so the ask pipeline and the
// interaction recorders can correlate with the access log.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext retrieves the request_id, or "" when none is present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDContextKey{}).(string)
	return rid
}

// ContextWithClientFingerprint stores the hashed client identity used by
// logs and interaction records.
func ContextWithClientFingerprint(ctx context.Context, fp string) context.Context {
	if ctx == nil || fp == "" {
		return ctx
	}
	return context.WithValue(ctx, clientContextKey{}, fp)
}

// ClientFingerprintFromContext retrieves the client fingerprint, or "".
func ClientFingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	fp, _ := ctx.Value(clientContextKey{}).(string)
	return fp
}
