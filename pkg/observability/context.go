package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	sessionIDCtxKey     contextKey = "session_id"
	userIDCtxKey        contextKey = "user_id"
)

// Attribute keys shared by logs and metrics.
const (
	CorrelationIDKey = "correlation_id"
	SessionIDKey     = "session_id"
	UserIDKey        = "user_id"
	OperationKey     = "operation"
	DurationKey      = "duration_ms"
	ErrorKey         = "error"
	ErrorCodeKey     = "error_code"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithSessionID tags the context with the visitor session that caused the
// work. Activity recorded under it counts towards unique visitors.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDCtxKey, id)
}

// SessionIDFromContext extracts the visitor session from context.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionIDCtxKey)
}

// WithUserID adds a user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts the user ID from context.
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, userIDCtxKey)
}

// NewCommandContext prepares the context of a single CLI invocation.
func NewCommandContext(ctx context.Context, userID, sessionID string) context.Context {
	ctx = WithCorrelationID(ctx, "")
	if userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	return WithSessionID(ctx, sessionID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
