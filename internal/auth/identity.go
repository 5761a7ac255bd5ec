package auth

import (
	"context"
	"errors"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the resolved current user.
type Identity struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// ErrNoIdentity means the credential did not resolve to a user.
var ErrNoIdentity = errors.New("no identity")

// Resolver turns an inbound credential into an Identity or ErrNoIdentity.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*Identity, error)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached by Middleware, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
