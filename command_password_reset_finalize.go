package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" doc:"Single use reset token from the email link."`
	Password   string `json:"password" doc:"New plaintext password."`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "password.reset.finalize" }

type FinalizePasswordResetResponse struct {
	User *PublicUser
}

// FinalizePasswordResetHandler consumes a reset token and updates the
// owning user's password. A token works exactly once: expired tokens are
// purged on sight, and successful resets delete the token in the same
// transaction as the password update.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	// The expired purge must survive the rollback the error return
	// triggers, so it runs on the base connection after the transaction
	// unwinds.
	var expiredID int64

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := h.repo.PasswordResets().GetByTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrResetTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		if reset.Expired(time.Now()) {
			expiredID = reset.ID
			return ErrResetTokenExpired
		}

		if user, err = h.repo.Users().GetByID(ctx, reset.UserID); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up token owner")
		}

		if len(event.Password) < MinPasswordLength {
			return ErrPasswordTooShort
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		if err := h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
		}

		if err := h.repo.PasswordResets().DeleteByIDTx(ctx, tx, reset.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume reset token")
		}

		return nil
	})

	if err != nil {
		if expiredID != 0 {
			if delErr := h.repo.PasswordResets().DeleteByID(ctx, expiredID); delErr != nil {
				h.logger.Warn("failed to purge expired reset token %d: %v", expiredID, delErr)
			}
		}

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

	h.recordActivity(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			User: user.Public(),
		})
	}

	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, user *User) {
	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   user.Subject(),
			Type: "user",
		},
		UserID:     user.Subject(),
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
