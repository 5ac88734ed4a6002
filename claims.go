package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims represents verified session claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Username() string
	Role() UserRole
	Subscribed() bool
	HasRole(role UserRole) bool
	IsAtLeast(minRole UserRole) bool
	IsAdmin() bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The three
// custom fields mirror the live user record; SessionValidator compares
// them field by field, which is the only revocation mechanism.
type JWTClaims struct {
	jwt.RegisteredClaims
	Name         string   `json:"username,omitempty"`
	UserRole     UserRole `json:"role,omitempty"`
	IsSubscribed bool     `json:"isSubscribed"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user id, which is the subject claim
func (c *JWTClaims) UserID() string {
	return c.Subject()
}

// Username returns the username captured at issuance time
func (c *JWTClaims) Username() string {
	return c.Name
}

// Role returns the role captured at issuance time
func (c *JWTClaims) Role() UserRole {
	return c.UserRole
}

// Subscribed returns the subscription flag captured at issuance time
func (c *JWTClaims) Subscribed() bool {
	return c.IsSubscribed
}

// HasRole checks if the claims carry a specific role
func (c *JWTClaims) HasRole(role UserRole) bool {
	return c.UserRole == role
}

// IsAtLeast checks if the claims' role is at least the minimum required role
func (c *JWTClaims) IsAtLeast(minRole UserRole) bool {
	return RoleIsAtLeast(c.UserRole, minRole)
}

// IsAdmin reports whether the claims satisfy admin gates
func (c *JWTClaims) IsAdmin() bool {
	return IsAdminRole(c.UserRole)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// matchesUser reports whether the claims still mirror the live record.
// Any drift in username, role, or subscription flag makes the token
// stale regardless of signature validity or remaining TTL.
func (c *JWTClaims) matchesUser(user *User) bool {
	if user == nil {
		return false
	}
	return c.Name == user.Username &&
		c.UserRole == user.Role &&
		c.IsSubscribed == user.IsSubscribed
}
