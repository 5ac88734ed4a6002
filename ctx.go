package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context. The
// JWT middleware may store a wrapped value; it is unwrapped here.
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	if claims, ok := raw.(AuthClaims); ok {
		return claims, true
	}
	if wrapped, ok := raw.(interface{ Unwrap() AuthClaims }); ok {
		return wrapped.Unwrap(), true
	}
	return nil, false
}

// IsAdminFromRouter reports whether the session in the router context
// belongs to an administrative role.
func IsAdminFromRouter(ctx router.Context, key string) bool {
	claims, ok := GetRouterClaims(ctx, key)
	if !ok {
		return false
	}
	return claims.IsAdmin()
}

// HasRoleFromRouter reports whether the session in the router context
// carries at least the given role.
func HasRoleFromRouter(ctx router.Context, key string, minRole UserRole) bool {
	claims, ok := GetRouterClaims(ctx, key)
	if !ok {
		return false
	}
	return claims.IsAtLeast(minRole)
}
