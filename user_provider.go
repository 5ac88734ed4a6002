package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// UserProvider implements IdentityProvider on top of the users store.
// It is the credential verifier: look the user up by username, compare
// the submitted secret against the stored hash.
type UserProvider struct {
	store  Users
	logger Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users) *UserProvider {
	return &UserProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the user, compare the password, and return
// the record. Unknown users and wrong passwords produce the same error
// so callers cannot enumerate usernames.
func (u *UserProvider) VerifyIdentity(ctx context.Context, username, password string) (*User, error) {
	user, err := u.store.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to compare password hash")
	}

	return user, nil
}

var _ IdentityProvider = (*UserProvider)(nil)
