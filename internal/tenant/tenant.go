// Package tenant carries the acting tenant and user on a context.Context.
// The values stamp audit records; nothing branches on them.
package tenant

import (
	"context"
	"errors"
)

// SystemActor is recorded when no user is attached.
const SystemActor = "system"

var ErrMissing = errors.New("tenant not set on context")

type Context struct {
	TenantID string
	UserID   string
}

// Actor is the user to record on audit events.
func (c Context) Actor() string {
	if c.UserID == "" {
		return SystemActor
	}
	return c.UserID
}

type ctxKey struct{}

func With(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

func From(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok && tc.TenantID != ""
}

// MustFrom returns ErrMissing when no tenant is attached.
func MustFrom(ctx context.Context) (Context, error) {
	tc, ok := From(ctx)
	if !ok {
		return Context{}, ErrMissing
	}
	return tc, nil
}
