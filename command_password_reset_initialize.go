package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Email address of the account to reset."`
	ResetURL   string `json:"-" doc:"Base URL the reset token gets appended to."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "password.reset.initialize" }

type InitializePasswordResetResponse struct {
	Token     string
	ExpiresAt time.Time
}

// InitializePasswordResetHandler creates a reset token for a known email
// address and delivers the reset link through the configured mailer.
// Requesting a new reset does not invalidate previously issued tokens.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer) *InitializePasswordResetHandler {
	if mailer == nil {
		mailer = &LogMailer{Logger: defLogger{}}
	}
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   mailer,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up user by email")
	}

	reset := &PasswordReset{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}

	if reset, err = h.repo.PasswordResets().Create(ctx, reset); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset token")
	}

	// mail delivery failures surface to the caller so the client knows
	// the reset link never went out
	link := event.ResetURL + reset.Token
	if err := h.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset email")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Token:     reset.Token,
			ExpiresAt: reset.ExpiresAt,
		})
	}

	return nil
}

func (h *InitializePasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor: ActorRef{
			ID:   user.Subject(),
			Type: "user",
		},
		UserID:     user.Subject(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset request: %v", err)
	}
}
