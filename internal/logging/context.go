package logging

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionIDKey
	loggerKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// EnsureRequestID returns ctx with a request id, generating a uuid when none
// is set, and the id itself.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	ctx = orBackground(ctx)
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ContextWithRequestID(ctx, id), id
}

// ContextWithRequestID stores a request id, typically an inbound
// x-request-id header.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(orBackground(ctx), requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithRequestLogger ensures a request id and returns base annotated with it.
func WithRequestLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	ctx, id := EnsureRequestID(ctx)
	return ctx, base.With(String("request_id", id))
}

// ContextWithSessionID stores the view session id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(orBackground(ctx), sessionIDKey, id)
}

// SessionIDFromContext returns the view session id or "".
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionIDKey)
}

// WithSessionLogger stores sessionID and returns base annotated with it.
func WithSessionLogger(ctx context.Context, base Logger, sessionID string) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	return ContextWithSessionID(ctx, sessionID), base.With(String("session_id", sessionID))
}

// ContextWithLogger stores l for FromContext.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	if l == nil {
		l = Noop()
	}
	return context.WithValue(orBackground(ctx), loggerKey, l)
}

// FromContext returns the logger stored on ctx, then fallback, then a noop
// logger.
func FromContext(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(Logger); ok && l != nil {
			return l
		}
	}
	if fallback == nil {
		return Noop()
	}
	return fallback
}
