package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface
// using the TokenService for WebSocket handshake authentication
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts AuthClaims to go-router's WSAuthClaims
// interface. Resource permissions derive from the role hierarchy: any
// session may read, admins may create and edit, only super admins may
// delete.
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// Role returns the user's role
func (w *WSAuthClaimsAdapter) Role() string {
	return string(w.claims.Role())
}

// CanRead checks if the user can read a specific resource
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.IsAtLeast(RoleUser)
}

// CanEdit checks if the user can edit a specific resource
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.IsAtLeast(RoleAdmin)
}

// CanCreate checks if the user can create a specific resource
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.IsAtLeast(RoleAdmin)
}

// CanDelete checks if the user can delete a specific resource
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.IsAtLeast(RoleSuperAdmin)
}

// HasRole checks if the user has a specific role
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(UserRole(role))
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	return w.claims.IsAtLeast(UserRole(minRole))
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication
// middleware backed by the authenticator's TokenService.
func (a *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(a.tokenService)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves auth claims from a WebSocket context.
// It returns the underlying AuthClaims for access to the full claim set.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
