package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username   string `json:"username" example:"pepe.rone" doc:"Unique username."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Unique email address."`
	Password   string `json:"password" example:"some_secret_word" doc:"Plaintext password, hashed before storage."`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User  *PublicUser
	Token string
}

type RegisterUserHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(repo RepositoryManager, tokens TokenService) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Username == "" || event.Email == "" || event.Password == "" {
		return ErrMissingRegistration
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// the duplicate check runs before any write
		existing, err := h.repo.Users().GetByUsernameOrEmail(ctx, event.Username, event.Email)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing user")
		}
		if existing != nil {
			return ErrDuplicateIdentity
		}

		if len(event.Password) < MinPasswordLength {
			return ErrPasswordTooShort
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Username = event.Username
		user.Email = event.Email
		user.PasswordHash = hash
		user.Role = RoleUser

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token for new user")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			User:  user.Public(),
			Token: token,
		})
	}

	return nil
}

func (h *RegisterUserHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor: ActorRef{
			ID:   user.Subject(),
			Type: "user",
		},
		UserID: user.Subject(),
		Metadata: map[string]any{
			"username": user.Username,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
