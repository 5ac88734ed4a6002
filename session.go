package auth

import (
	"fmt"
	"time"

	"github.com/goliatone/go-router"
)

// SessionObject is the transport-friendly projection of a verified
// session. It carries the claim snapshot, never the live user record;
// callers that need fresh data go through CurrentUser.
type SessionObject struct {
	UserID         string     `json:"user_id,omitempty"`
	Username       string     `json:"username,omitempty"`
	Role           UserRole   `json:"role,omitempty"`
	Subscribed     bool       `json:"subscribed"`
	Audience       []string   `json:"audience,omitempty"`
	Issuer         string     `json:"issuer,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

// HasRole checks if the session carries a specific role
func (s *SessionObject) HasRole(role UserRole) bool {
	return s.Role == role
}

// IsAtLeast checks if the session role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole UserRole) bool {
	return RoleIsAtLeast(s.Role, minRole)
}

// IsAdmin reports whether the session satisfies admin gates
func (s *SessionObject) IsAdmin() bool {
	return IsAdminRole(s.Role)
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s role=%s aud=%v iss=%s iat=%s",
		s.UserID,
		s.Role,
		s.Audience,
		s.Issuer,
		issuedAt,
	)
}

// SessionFromClaims creates a SessionObject from verified claims.
func SessionFromClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToDecodeSession
	}

	session := &SessionObject{
		UserID:     claims.UserID(),
		Username:   claims.Username(),
		Role:       claims.Role(),
		Subscribed: claims.Subscribed(),
	}

	if jwtClaims, ok := claims.(*JWTClaims); ok {
		session.Issuer = jwtClaims.RegisteredClaims.Issuer
		session.Audience = append(session.Audience, jwtClaims.RegisteredClaims.Audience...)
	}

	if issuedAt := claims.IssuedAt(); !issuedAt.IsZero() {
		session.IssuedAt = &issuedAt
	}

	if expires := claims.Expires(); !expires.IsZero() {
		session.ExpirationDate = &expires
	}

	return session, nil
}

// SessionFromRouterContext reads the claims stored by the protected
// route middleware and projects them into a SessionObject.
func SessionFromRouterContext(ctx router.Context, contextKey string) (*SessionObject, error) {
	claims, ok := GetRouterClaims(ctx, contextKey)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}
	return SessionFromClaims(claims)
}
