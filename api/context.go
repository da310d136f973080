package api

import (
	"context"

	"github.com/GoCodeAlone/pipelineapi/service"
	"github.com/google/uuid"
)

type contextKey int

const (
	contextKeyActor contextKey = iota
	contextKeyRequestID
)

// SetActor returns a new context with the actor attached.
func SetActor(ctx context.Context, a service.Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, a)
}

// ActorFromContext extracts the authenticated actor, or service.Anonymous.
func ActorFromContext(ctx context.Context) service.Actor {
	if a, ok := ctx.Value(contextKeyActor).(service.Actor); ok {
		return a
	}
	return service.Anonymous
}

// SetRequestID returns a new context with the request ID attached.
func SetRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(contextKeyRequestID).(uuid.UUID)
	return id
}
