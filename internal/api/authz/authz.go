package authz

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Admin is the authenticated operator allowed to mutate availability.
type Admin struct {
	Subject   string
	ExpiresAt time.Time
}

// Gate decides who may call the mutation endpoints. Authorize returns a nil
// Admin and nil error for anonymous requests.
type Gate interface {
	Authorize(r *http.Request) (*Admin, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(r *http.Request) (*Admin, error)

func (f GateFunc) Authorize(r *http.Request) (*Admin, error) {
	return f(r)
}

type adminContextKey struct{}

func ContextWithAdmin(ctx context.Context, admin *Admin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, admin)
}

// AdminFromContext retrieves the Admin stored in ctx.
// It returns nil if ctx is nil, if no admin is stored, or if the stored value has a different type.
func AdminFromContext(ctx context.Context) *Admin {
	if ctx == nil {
		return nil
	}

	admin, ok := ctx.Value(adminContextKey{}).(*Admin)
	if !ok {
		return nil
	}

	return admin
}

func RequireAdmin(ctx context.Context) error {
	if AdminFromContext(ctx) == nil {
		return ErrUnauthenticated
	}
	return nil
}
