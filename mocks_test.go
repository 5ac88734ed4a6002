package auth_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	auth "github.com/ukcheckpoints/go-auth"
)

func notFoundErr() error {
	return repository.NewRecordNotFound()
}

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// mockConfig implements auth.Config for tests
type mockConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
}

func newMockConfig() *mockConfig {
	return &mockConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: auth.DefaultTokenExpiration,
		issuer:          "test-issuer",
		audience:        []string{"test-audience"},
	}
}

func (c *mockConfig) GetSigningKey() string    { return c.signingKey }
func (c *mockConfig) GetSigningMethod() string { return "HS256" }
func (c *mockConfig) GetContextKey() string    { return "jwt" }
func (c *mockConfig) GetTokenExpiration() int  { return c.tokenExpiration }
func (c *mockConfig) GetTokenLookup() string   { return "cookie:jwt,header:Authorization" }
func (c *mockConfig) GetAuthScheme() string    { return "Bearer" }
func (c *mockConfig) GetIssuer() string        { return c.issuer }
func (c *mockConfig) GetAudience() []string    { return c.audience }

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, username, password string) (*auth.User, error) {
	args := m.Called(ctx, username, password)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByUsernameOrEmail(ctx context.Context, username, email string) (*auth.User, error) {
	args := m.Called(ctx, username, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByStripeCustomer(ctx context.Context, customerID string) (*auth.User, error) {
	args := m.Called(ctx, customerID)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) List(ctx context.Context) ([]*auth.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *auth.User) (*auth.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, record)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) Update(ctx context.Context, record *auth.User) (*auth.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) UpdateRole(ctx context.Context, id int64, role auth.UserRole) (*auth.User, error) {
	args := m.Called(ctx, id, role)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) UpdateSubscription(ctx context.Context, id int64, subscribed bool, subscribedAt *time.Time) (*auth.User, error) {
	args := m.Called(ctx, id, subscribed, subscribedAt)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) SetStripeCustomer(ctx context.Context, id int64, customerID string) error {
	args := m.Called(ctx, id, customerID)
	return args.Error(0)
}

func (m *MockUsers) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPasswordResets implements auth.PasswordResets
type MockPasswordResets struct {
	mock.Mock
}

func (m *MockPasswordResets) Create(ctx context.Context, record *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, record)
	if fn, ok := args.Get(0).(func(context.Context, *auth.PasswordReset) *auth.PasswordReset); ok {
		return fn(ctx, record), args.Error(1)
	}
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResets) CreateTx(ctx context.Context, tx bun.IDB, record *auth.PasswordReset) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, record)
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResets) GetByToken(ctx context.Context, token string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, token)
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResets) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tx, token)
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResets) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPasswordResets) DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockPasswordResets) CountActiveForUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// MockRepositoryManager implements auth.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Users() auth.Users {
	args := m.Called()
	return args.Get(0).(auth.Users)
}

func (m *MockRepositoryManager) PasswordResets() auth.PasswordResets {
	args := m.Called()
	return args.Get(0).(auth.PasswordResets)
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(context.Context, bun.Tx) error) error {
	args := m.Called(ctx, opts, fn)
	return args.Error(0)
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

// fakeRepoManager wires mock repositories behind a RunInTx that simply
// invokes the closure, so command handlers exercise their real logic.
type fakeRepoManager struct {
	users  auth.Users
	resets auth.PasswordResets
}

func (f *fakeRepoManager) Users() auth.Users { return f.users }

func (f *fakeRepoManager) PasswordResets() auth.PasswordResets { return f.resets }

func (f *fakeRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(context.Context, bun.Tx) error) error {
	var tx bun.Tx
	return fn(ctx, tx)
}

func (f *fakeRepoManager) Validate() error { return nil }

func (f *fakeRepoManager) MustValidate() {}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, email, resetLink string) error {
	args := m.Called(ctx, email, resetLink)
	return args.Error(0)
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type capturingSink struct {
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}
