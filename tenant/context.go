// Package tenant carries the per-request tenant identity. The identity is an
// explicit context value flowing down the call chain; there is no process
// level "current tenant", so concurrent requests stay isolated without
// locking.
package tenant

import (
	"context"

	"github.com/garagehub/gomicro/jwtutil"
)

type contextKey struct{}

// Identity is the request-scoped view of a verified token. It is built from
// validated claims only, read by guards and data access code, and discarded
// with the request.
type Identity struct {
	UserID     uint
	TenantID   int
	Plan       string
	TenantName string
	Role       string
	JTI        string
	TokenKind  string
}

// FromClaims builds an Identity from a verified claim set.
func FromClaims(claims *jwtutil.Claims) (*Identity, error) {
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:     userID,
		TenantID:   claims.TenantID,
		Plan:       claims.Plan,
		TenantName: claims.TenantName,
		JTI:        claims.ID,
		TokenKind:  claims.TokenKind,
	}, nil
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the bound identity, or nil when the request is
// anonymous.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// TenantID returns the bound tenant id. ok is false for anonymous requests
// and for tokens that carry no tenant claim; callers must treat that as "no
// tenant scope", never as "all tenants".
func TenantID(ctx context.Context) (int, bool) {
	id := IdentityFromContext(ctx)
	if id == nil || id.TenantID == 0 {
		return 0, false
	}
	return id.TenantID, true
}

// Plan returns the bound subscription plan, or empty for anonymous requests.
func Plan(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Plan
	}
	return ""
}

// UserID returns the bound principal id.
func UserID(ctx context.Context) (uint, bool) {
	id := IdentityFromContext(ctx)
	if id == nil {
		return 0, false
	}
	return id.UserID, true
}
