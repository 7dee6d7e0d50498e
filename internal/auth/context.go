package auth

import (
	"context"

	"github.com/vxgate/vxgate/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	clientContextKey contextKey = "client"
	userContextKey   contextKey = "user"
)

// ContextWithClient attaches the resolved client to the context.
func ContextWithClient(ctx context.Context, client *model.Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// ClientFromContext retrieves the resolved client.
// Returns nil if not present.
func ClientFromContext(ctx context.Context) *model.Client {
	client, ok := ctx.Value(clientContextKey).(*model.Client)
	if !ok {
		return nil
	}
	return client
}

// ContextWithUser attaches the resolved user to the context.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the resolved user.
// Returns nil if not present.
func UserFromContext(ctx context.Context) *model.User {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok {
		return nil
	}
	return user
}

// ClientIDFromContext is a convenience function for logging.
// Returns empty string if no client is attached.
func ClientIDFromContext(ctx context.Context) string {
	if c := ClientFromContext(ctx); c != nil {
		return c.ID()
	}
	return ""
}

// UserIDFromContext is a convenience function for logging.
// Returns empty string if no user is attached.
func UserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID()
	}
	return ""
}
