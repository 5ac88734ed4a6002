package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/ukcheckpoints/go-auth"
)

func TestSessionFromClaims(t *testing.T) {
	issued := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := issued.Add(7 * 24 * time.Hour)

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Name:         "gina",
		UserRole:     auth.RoleAdmin,
		IsSubscribed: true,
	}

	t.Run("projects the claim snapshot", func(t *testing.T) {
		session, err := auth.SessionFromClaims(claims)
		require.NoError(t, err)

		assert.Equal(t, "42", session.UserID)
		assert.Equal(t, "gina", session.Username)
		assert.Equal(t, auth.RoleAdmin, session.Role)
		assert.True(t, session.Subscribed)
		assert.Equal(t, "test-issuer", session.Issuer)
		assert.Equal(t, []string{"test-audience"}, session.Audience)
		require.NotNil(t, session.IssuedAt)
		assert.Equal(t, issued, *session.IssuedAt)
		require.NotNil(t, session.ExpirationDate)
		assert.Equal(t, expires, *session.ExpirationDate)
	})

	t.Run("role helpers follow the hierarchy", func(t *testing.T) {
		session, err := auth.SessionFromClaims(claims)
		require.NoError(t, err)

		assert.True(t, session.IsAdmin())
		assert.True(t, session.HasRole(auth.RoleAdmin))
		assert.False(t, session.HasRole(auth.RoleSuperAdmin))
		assert.True(t, session.IsAtLeast(auth.RoleUser))
		assert.False(t, session.IsAtLeast(auth.RoleSuperAdmin))
	})

	t.Run("nil claims error", func(t *testing.T) {
		_, err := auth.SessionFromClaims(nil)
		assert.ErrorIs(t, err, auth.ErrUnableToDecodeSession)
	})

	t.Run("zero timestamps stay nil", func(t *testing.T) {
		session, err := auth.SessionFromClaims(&auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
			UserRole:         auth.RoleUser,
		})
		require.NoError(t, err)
		assert.Nil(t, session.IssuedAt)
		assert.Nil(t, session.ExpirationDate)
	})

	t.Run("string format", func(t *testing.T) {
		session, err := auth.SessionFromClaims(claims)
		require.NoError(t, err)
		assert.Contains(t, session.String(), "user=42")
		assert.Contains(t, session.String(), "role=ADMIN")
	})
}
