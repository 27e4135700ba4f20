// Package tenant keeps every authenticated request inside its own tenant.
// The session is resolved before any handler runs; stores then scope each
// statement by both the row id and the caller's tenant.
package tenant

import (
	"context"
	"errors"
)

// Role is a user's role within its tenant.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

var (
	// ErrUnauthenticated is returned when the request has no valid session.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNotFound covers both a missing row and a row owned by another tenant.
	ErrNotFound = errors.New("not found or no permission")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated caller. Role is empty until RequireRole has run.
type Identity struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     Role   `json:"role,omitempty"`
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" || id.TenantID == "" {
		return Identity{}, false
	}
	return id, true
}

// Require is FromContext for code paths that must not run anonymously.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
