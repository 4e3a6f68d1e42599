package auth

import (
	"context"
	"errors"
)

type contextKey string

const actorKey contextKey = "actor"

// ErrNoActor is returned when a context carries no authenticated actor.
var ErrNoActor = errors.New("no actor in context")

// WithActor attaches an Actor to the context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom retrieves the Actor from the context.
func ActorFrom(ctx context.Context) (*Actor, error) {
	a, ok := ctx.Value(actorKey).(*Actor)
	if !ok || a == nil {
		return nil, ErrNoActor
	}
	return a, nil
}

// ActorID returns the actor's id, or "" when unauthenticated. Use only on
// paths where middleware guarantees authentication.
func ActorID(ctx context.Context) string {
	a, err := ActorFrom(ctx)
	if err != nil {
		return ""
	}
	return a.ID
}
