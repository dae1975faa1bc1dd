package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
	entityIDKey  contextKey = "entity_id"
	fileUUIDKey  contextKey = "file_uuid"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithSessionID adds a wizard session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext retrieves the wizard session ID from context.
// Returns empty string if not present.
func SessionIDFromContext(ctx context.Context) string {
	if v := ctx.Value(sessionIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithEntityID adds an entity ID (file name or group id) to the context.
func WithEntityID(ctx context.Context, entityID string) context.Context {
	return context.WithValue(ctx, entityIDKey, entityID)
}

// EntityIDFromContext retrieves the entity ID from context.
// Returns empty string if not present.
func EntityIDFromContext(ctx context.Context) string {
	if v := ctx.Value(entityIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithFileUUID adds a backend file UUID to the context.
func WithFileUUID(ctx context.Context, fileUUID string) context.Context {
	return context.WithValue(ctx, fileUUIDKey, fileUUID)
}

// FileUUIDFromContext retrieves the backend file UUID from context.
// Returns empty string if not present.
func FileUUIDFromContext(ctx context.Context) string {
	if v := ctx.Value(fileUUIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// SessionContext contains all the context data for a wizard session request.
type SessionContext struct {
	RequestID string
	SessionID string
	EntityID  string
	FileUUID  string
}

// WithSessionContextFull adds all session context to the context.
func WithSessionContextFull(ctx context.Context, sc SessionContext) context.Context {
	if sc.RequestID != "" {
		ctx = WithRequestID(ctx, sc.RequestID)
	}
	if sc.SessionID != "" {
		ctx = WithSessionID(ctx, sc.SessionID)
	}
	if sc.EntityID != "" {
		ctx = WithEntityID(ctx, sc.EntityID)
	}
	if sc.FileUUID != "" {
		ctx = WithFileUUID(ctx, sc.FileUUID)
	}
	return ctx
}

// SessionContextFromContext extracts all session context from the context.
func SessionContextFromContext(ctx context.Context) SessionContext {
	return SessionContext{
		RequestID: RequestIDFromContext(ctx),
		SessionID: SessionIDFromContext(ctx),
		EntityID:  EntityIDFromContext(ctx),
		FileUUID:  FileUUIDFromContext(ctx),
	}
}
