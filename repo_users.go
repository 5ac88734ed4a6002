package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Users is the store interface consumed by the auth core. Lookups are
// single-key; every mutation is an independent round trip.
type Users interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*User, error)
	List(ctx context.Context) ([]*User, error)

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
	UpdateRole(ctx context.Context, id int64, role UserRole) (*User, error)
	UpdateSubscription(ctx context.Context, id int64, subscribed bool, subscribedAt *time.Time) (*User, error)
	SetStripeCustomer(ctx context.Context, id int64, customerID string) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (a *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return a.getOne(ctx, a.db, "?TableAlias.id = ?", id)
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getOne(ctx, a.db, "?TableAlias.username = ?", username)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getOne(ctx, a.db, "?TableAlias.email = ?", email)
}

// GetByUsernameOrEmail backs the registration duplicate check. Either
// column matching is a conflict.
func (a *users) GetByUsernameOrEmail(ctx context.Context, username, email string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		WhereOr("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.mapNotFound(err, map[string]any{"username": username, "email": email})
	}
	return record, nil
}

func (a *users) GetByStripeCustomer(ctx context.Context, customerID string) (*User, error) {
	return a.getOne(ctx, a.db, "?TableAlias.stripe_customer = ?", customerID)
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	var records []*User
	if err := a.db.NewSelect().Model(&records).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record.Role == "" {
		record.Role = RoleUser
	}
	if _, err := tx.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) Update(ctx context.Context, record *User) (*User, error) {
	now := time.Now()
	record.UpdatedAt = &now
	_, err := a.db.NewUpdate().
		Model(record).
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) UpdateRole(ctx context.Context, id int64, role UserRole) (*User, error) {
	record := &User{}
	res, err := a.db.NewUpdate().
		Model(record).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}
	return record, nil
}

func (a *users) UpdateSubscription(ctx context.Context, id int64, subscribed bool, subscribedAt *time.Time) (*User, error) {
	record := &User{}
	q := a.db.NewUpdate().
		Model(record).
		Set("is_subscribed = ?", subscribed).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", id).
		Returning("*")

	if subscribedAt != nil {
		q = q.Set("subscribed_at = ?", subscribedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}
	return record, nil
}

func (a *users) SetStripeCustomer(ctx context.Context, id int64, customerID string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("stripe_customer = ?", customerID).
		Set("updated_at = ?", time.Now()).
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

func (a *users) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
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

func (a *users) Delete(ctx context.Context, id int64) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
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

func (a *users) getOne(ctx context.Context, tx bun.IDB, where string, arg any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.mapNotFound(err, map[string]any{"where": where})
	}
	return record, nil
}

func (a *users) mapNotFound(err error, meta map[string]any) error {
	if repository.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().WithMetadata(meta)
	}
	return err
}
