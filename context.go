package remotecare

import "context"

type actorKey struct{}

// WithActor returns a context naming the user responsible for the changes
// saved with it. A user set on the record itself takes precedence.
func WithActor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFrom returns the user stored by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(actorKey{}).(string)
	return user, ok && user != ""
}
