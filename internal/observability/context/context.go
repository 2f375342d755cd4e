package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey     ctxKey = "request_id"
	correlationIDKey ctxKey = "correlation_id"
	actorTypeKey     ctxKey = "actor_type"
	actorIDKey       ctxKey = "actor_id"
	actorRoleKey     ctxKey = "actor_role"
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// WithActor records who is performing the request. The role drives
// authorization; type and id are written to audit rows.
func WithActor(ctx context.Context, actorType, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, strings.TrimSpace(actorType))
	ctx = context.WithValue(ctx, actorIDKey, strings.TrimSpace(actorID))
	return context.WithValue(ctx, actorRoleKey, strings.TrimSpace(role))
}

// ActorFromContext returns the actor, defaulting to the system actor for
// background work such as CLI commands.
func ActorFromContext(ctx context.Context) (string, string) {
	actorType := stringValue(ctx, actorTypeKey)
	if actorType == "" {
		return ActorTypeSystem, ""
	}
	return actorType, stringValue(ctx, actorIDKey)
}

func ActorRoleFromContext(ctx context.Context) string {
	return stringValue(ctx, actorRoleKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
