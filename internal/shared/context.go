package shared

import "context"

type ownerContextKey struct{}

type actorContextKey struct{}

// ContextWithOwner stores the owner whose lot pool the request operates on.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

// OwnerFromContext extracts the owner id from context.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey{}).(string)
	return owner
}

// ContextWithActor stores the acting user id for audit records.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id, zero when unknown.
func ActorFromContext(ctx context.Context) int64 {
	actor, _ := ctx.Value(actorContextKey{}).(int64)
	return actor
}
