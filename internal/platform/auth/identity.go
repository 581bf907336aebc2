package auth

import (
	"context"
	"fmt"
	"strings"
)

// Role is the capability claim carried by an authenticated caller.
type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClient, RoleProfessional:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity is the authenticated caller. Services take it as an explicit
// argument and never read it from ambient state.
type Identity struct {
	ID   string
	Role Role
}

func (i Identity) IsProfessional() bool { return i.Role == RoleProfessional }
func (i Identity) IsClient() bool       { return i.Role == RoleClient }

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity installed by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}
