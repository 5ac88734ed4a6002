package auth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, *User, error)
	SessionFromToken(token string) (AuthClaims, error)
	CurrentUser(ctx context.Context, token string) (*CurrentUser, error)
	RequireAdmin(ctx context.Context, token string) (*CurrentUser, error)
}

// CurrentUser is what SessionValidator hands back on success: the live
// user's public fields plus the id as an opaque identifier.
type CurrentUser struct {
	ID   string      `json:"id"`
	Data *PublicUser `json:"data"`
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
}

// IdentityProvider ensures we have a store to verify auth identities
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, username, password string) (*User, error)
}

// Mailer dispatches outbound messages. It is an external collaborator:
// failures propagate to the caller, they are never swallowed.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetLink string) error
}

// CheckpointLister is the slice of the checkpoint module the admin
// surface needs. The checkpoint CRUD itself lives elsewhere.
type CheckpointLister interface {
	ListCheckpoints(ctx context.Context) ([]map[string]any, error)
}

// DefaultLogger returns the stdout logger used when no Logger is
// supplied.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
