package middleware

import (
	"context"

	"github.com/willy-peters/SmartPOS/internal/access"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// IdentityFromContext returns the authenticated principal seeded by Auth.
// The zero Identity means the request never passed the auth middleware.
func IdentityFromContext(ctx context.Context) access.Identity {
	if ctx == nil {
		return access.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(access.Identity); ok {
		return v
	}
	return access.Identity{}
}

// WithIdentity attaches the principal to the context. Exported so handler
// tests can seed requests without running the full middleware chain.
func WithIdentity(ctx context.Context, identity access.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, identity)
}
