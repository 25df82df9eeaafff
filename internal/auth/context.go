package auth

import (
	"context"

	"github.com/taskflow/apiserver/types"
)

type identityContextKey struct{}

// WithIdentity stores the authenticated user on the context for downstream handlers.
func WithIdentity(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, identityContextKey{}, user)
}

// IdentityFromContext retrieves the authenticated user from the context.
func IdentityFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(identityContextKey{}).(types.User)
	return user, ok
}
