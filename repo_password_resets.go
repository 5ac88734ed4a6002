package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PasswordResets is the reset-token store. Tokens are looked up by their
// opaque string, never enumerated, and removed individually.
type PasswordResets interface {
	Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *PasswordReset) (*PasswordReset, error)
	GetByToken(ctx context.Context, token string) (*PasswordReset, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) error
	CountActiveForUser(ctx context.Context, userID int64) (int, error)
}

type passwordResets struct {
	db *bun.DB
}

var _ PasswordResets = (*passwordResets)(nil)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	return &passwordResets{db: db}
}

func (r *passwordResets) Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *passwordResets) CreateTx(ctx context.Context, tx bun.IDB, record *PasswordReset) (*PasswordReset, error) {
	if _, err := tx.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *passwordResets) GetByToken(ctx context.Context, token string) (*PasswordReset, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *passwordResets) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"token": token})
		}
		return nil, err
	}
	return record, nil
}

func (r *passwordResets) DeleteByID(ctx context.Context, id int64) error {
	return r.DeleteByIDTx(ctx, r.db, id)
}

func (r *passwordResets) DeleteByIDTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*PasswordReset)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}
	return nil
}

// CountActiveForUser exists for observability; the flow itself never
// caps the number of concurrently valid tokens per user.
func (r *passwordResets) CountActiveForUser(ctx context.Context, userID int64) (int, error) {
	return r.db.NewSelect().
		Model((*PasswordReset)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.expires_at > ?", time.Now()).
		Count(ctx)
}
