package auth

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Role           UserRole   `bun:"role,notnull,default:'USER'" json:"role,omitempty"`
	IsSubscribed   bool       `bun:"is_subscribed,notnull,default:false" json:"isSubscribed"`
	StripeCustomer string     `bun:"stripe_customer,nullzero" json:"stripeCustomer,omitempty"`
	SubscribedAt   *time.Time `bun:"subscribed_at,nullzero" json:"subscribedAt,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// Subject returns the user id in the form it appears in token claims.
func (u *User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}

// Public projects the record onto the fields we are willing to hand back
// to callers. The password hash never leaves the store through this path.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		Username:       u.Username,
		Email:          u.Email,
		Role:           u.Role,
		IsSubscribed:   u.IsSubscribed,
		StripeCustomer: u.StripeCustomer,
		SubscribedAt:   u.SubscribedAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// PublicUser is the client facing view of a User
type PublicUser struct {
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Role           UserRole   `json:"role"`
	IsSubscribed   bool       `json:"isSubscribed"`
	StripeCustomer string     `json:"stripeCustomer,omitempty"`
	SubscribedAt   *time.Time `json:"subscribedAt,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// ResetTokenTTL is how long a password reset token stays usable.
var ResetTokenTTL = time.Hour

// PasswordReset is a single use, time bounded reset authorization. It is
// independent from session tokens: it lives in the store, not inside a JWT.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	UserID        int64      `bun:"user_id,notnull" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (r *PasswordReset) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
