package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Auther wires credential verification, token issuance, session
// validation, and the admin gate together.
type Auther struct {
	provider     IdentityProvider
	users        Users
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, users Users, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		users:        users,
		tokenService: tokenService,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service, mostly useful in tests.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies credentials and issues a session token whose claims
// snapshot the user record at issuance time.
func (s *Auther) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.provider.VerifyIdentity(ctx, username, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"username": username,
			"error":    err.Error(),
		})
		return "", nil, err
	}

	token, err := s.tokenService.Generate(user)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{ID: user.Subject(), Type: "user"}, user.Subject(), map[string]any{
			"username": username,
			"error":    err.Error(),
		})
		return "", nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: user.Subject(), Type: "user"}, user.Subject(), map[string]any{
		"username": username,
	})

	return token, user, nil
}

// SessionFromToken runs the purely cryptographic/structural check. It
// does not consult the data store.
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, err
	}
	return claims, nil
}

// CurrentUser is the session validator. It verifies the token, loads
// the live user, and rejects the session when the claims no longer
// mirror the record. Field drift is the system's only revocation
// mechanism: changing username, role, or subscription flag invalidates
// every outstanding token for that user without a blocklist.
//
// All failure modes collapse into ErrInvalidToken so callers cannot
// distinguish a bad signature from a stale or orphaned session.
func (s *Auther) CurrentUser(ctx context.Context, token string) (*CurrentUser, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokenService.Validate(token)
	if err != nil {
		s.logger.Debug("CurrentUser token verification failed: %v", err)
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject(), 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user for session validation")
	}

	jwtClaims, ok := claims.(*JWTClaims)
	if !ok || !jwtClaims.matchesUser(user) {
		s.logger.Debug("CurrentUser claims drifted from live record for user %s", claims.Subject())
		return nil, ErrInvalidToken
	}

	return &CurrentUser{
		ID:   user.Subject(),
		Data: user.Public(),
	}, nil
}

// RequireAdmin is the authorization gate for privileged operations.
// Any session validation failure, or a role outside {ADMIN,
// SUPER_ADMIN}, is a uniform denial.
func (s *Auther) RequireAdmin(ctx context.Context, token string) (*CurrentUser, error) {
	current, err := s.CurrentUser(ctx, token)
	if err != nil {
		return nil, ErrAdminRequired
	}

	if !IsAdminRole(current.Data.Role) {
		return nil, ErrAdminRequired
	}

	return current, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

var _ Authenticator = (*Auther)(nil)
