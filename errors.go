package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes attached to richer errors so API clients can branch without
// string matching on messages.
const (
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeAdminRequired    = "ADMIN_REQUIRED"
	TextCodeDuplicateUser    = "DUPLICATE_USER"
	TextCodePasswordTooShort = "PASSWORD_TOO_SHORT"
	TextCodeResetExpired     = "RESET_TOKEN_EXPIRED"
)

// ErrMissingCredentials is returned when login input is incomplete
var ErrMissingCredentials = errors.New(
	"Missing required fields. Please provide both username and password to proceed.",
	errors.CategoryValidation,
)

// ErrMissingRegistration is returned when registration input is incomplete
var ErrMissingRegistration = errors.New(
	"Missing required fields. Please provide username, email and password to proceed.",
	errors.CategoryValidation,
)

// ErrInvalidCredentials is the uniform bad-credentials error. Unknown
// username and wrong password are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("Invalid username or password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken covers every session token verification failure:
// missing, malformed, bad signature, expired, or stale claims.
var ErrInvalidToken = errors.New("Invalid token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrAdminRequired is the uniform authorization denial for admin gates
var ErrAdminRequired = errors.New("Admin access required", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeAdminRequired)

// ErrUserNotFound is returned when a user lookup by email or id fails
var ErrUserNotFound = errors.New("User not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrDuplicateIdentity is raised before any write when registration hits
// an existing username or email
var ErrDuplicateIdentity = errors.New("Username or email already exists", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeDuplicateUser)

// ErrPasswordTooShort rejects secrets under MinPasswordLength
var ErrPasswordTooShort = errors.New("Password must be at least 8 characters long", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodePasswordTooShort)

// ErrResetTokenNotFound is returned for unknown (or already consumed)
// reset tokens
var ErrResetTokenNotFound = errors.New("Invalid or expired password reset token", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrResetTokenExpired is returned on a consume attempt past the expiry;
// the token is purged before this error is raised
var ErrResetTokenExpired = errors.New("Password reset token has expired", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeResetExpired)

// ErrTokenExpired is the verification error for expired session tokens
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is the verification error for structurally invalid
// or badly signed session tokens
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrUnableToDecodeSession unable to decode JWT claims
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty secrets before hashing
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch error
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// MinPasswordLength is enforced at registration and reset finalization
const MinPasswordLength = 8

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
