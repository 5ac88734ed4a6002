package auth

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/ukcheckpoints/go-auth/middleware/jwtware"
)

// HTTPAuthenticator is the surface the HTTP controller needs from the
// route authenticator.
type HTTPAuthenticator interface {
	Login(c router.Context, payload LoginPayload) (*User, error)
	Logout(c router.Context)
	TokenFromRequest(c router.Context) string
	CurrentUser(c router.Context) (*CurrentUser, error)
	RequireAdmin(c router.Context) (*CurrentUser, error)
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

type RouteAuthenticator struct {
	auth           Authenticator
	cfg            Config
	validator      TokenValidator
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
		validator: TokenValidatorFunc(func(token string) (AuthClaims, error) {
			return auther.SessionFromToken(token)
		}),
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// jwtValidatorAdapter bridges the interface types of the two packages.
// The middleware speaks plain strings for roles so it stays decoupled
// from the role enum.
type jwtValidatorAdapter struct {
	v TokenValidator
}

func (a jwtValidatorAdapter) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := a.v.Validate(token)
	if err != nil {
		return nil, err
	}
	return jwtClaimsAdapter{claims: claims}, nil
}

type jwtClaimsAdapter struct {
	claims AuthClaims
}

func (c jwtClaimsAdapter) Subject() string  { return c.claims.Subject() }
func (c jwtClaimsAdapter) UserID() string   { return c.claims.UserID() }
func (c jwtClaimsAdapter) Username() string { return c.claims.Username() }
func (c jwtClaimsAdapter) Role() string     { return string(c.claims.Role()) }
func (c jwtClaimsAdapter) Subscribed() bool { return c.claims.Subscribed() }
func (c jwtClaimsAdapter) IsAdmin() bool    { return c.claims.IsAdmin() }

func (c jwtClaimsAdapter) HasRole(role string) bool {
	return c.claims.HasRole(UserRole(role))
}

func (c jwtClaimsAdapter) IsAtLeast(minRole string) bool {
	return c.claims.IsAtLeast(UserRole(minRole))
}

// Unwrap exposes the full claims to context helpers.
func (c jwtClaimsAdapter) Unwrap() AuthClaims { return c.claims }

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute rejects requests that carry no verifiable session token.
// Handlers behind it can read the claims from ctx.Locals(cfg.GetContextKey()).
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler:   errorHandler,
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			TokenValidator: jwtValidatorAdapter{a.validator},
		})(hf)
	}
}

// AdminRoute behaves like ProtectedRoute but additionally resolves the
// live user and denies anyone without an administrative role. Expired
// tokens, stale claims, and insufficient roles all produce the same
// admin denial.
func (a *RouteAuthenticator) AdminRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			current, err := a.RequireAdmin(ctx)
			if err != nil {
				return errorHandler(ctx, err)
			}

			ctx.Locals(cfg.GetContextKey(), current)
			return ctx.Next()
		}
	}
}

func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*User, error) {
	token, user, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return nil, err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return user, nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// TokenFromRequest reads the raw session token, preferring the session
// cookie over the Authorization header.
func (a *RouteAuthenticator) TokenFromRequest(ctx router.Context) string {
	extractors := jwtware.GetExtractors(a.cfg.GetTokenLookup(), a.cfg.GetAuthScheme())
	raw, err := jwtware.ExtractRawTokenFromContext(ctx, extractors)
	if err != nil {
		return ""
	}
	return raw
}

// CurrentUser validates the request's session token against the live
// user record, including the claim drift check.
func (a *RouteAuthenticator) CurrentUser(ctx router.Context) (*CurrentUser, error) {
	return a.auth.CurrentUser(ctx.Context(), a.TokenFromRequest(ctx))
}

// RequireAdmin validates the session and checks for an administrative
// role in a single step.
func (a *RouteAuthenticator) RequireAdmin(ctx router.Context) (*CurrentUser, error) {
	return a.auth.RequireAdmin(ctx.Context(), a.TokenFromRequest(ctx))
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := AsRichError(err)

	a.Logger.Info(
		"Middleware error handler: %s category=%s details=%s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	return RenderJSONError(c, richErr)
}

// AsRichError normalizes any error into a rich error with an HTTP code.
func AsRichError(err error) *errors.Error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}
	if richErr.Code == 0 {
		richErr = richErr.WithCode(statusFromCategory(richErr.Category))
	}
	return richErr
}

// RenderJSONError writes the canonical error envelope.
func RenderJSONError(c router.Context, richErr *errors.Error) error {
	body := router.ViewContext{
		"message": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}
	return c.JSON(richErr.Code, body)
}

func statusFromCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return router.StatusUnauthorized
	case errors.CategoryNotFound:
		return router.StatusNotFound
	case errors.CategoryConflict:
		return router.StatusConflict
	case errors.CategoryValidation:
		return router.StatusUnprocessableEntity
	case errors.CategoryBadInput:
		return router.StatusBadRequest
	default:
		return router.StatusInternalServerError
	}
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)
