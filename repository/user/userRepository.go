package userrepo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

type Repo interface {
	Create(ctx context.Context, u *model.User) error
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByID(ctx context.Context, id int64) (*model.User, error)

	// StaffIDs lists every STAFF user, for fan-out notifications.
	StaffIDs(ctx context.Context) ([]int64, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) Create(ctx context.Context, u *model.User) error {
	const q = `
		INSERT INTO users (email, username, full_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q, u.Email, u.Username, u.FullName, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
}

const userCols = `id, email, username, full_name, password_hash, role, created_at`

func (r *repo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email = $1`
	var u model.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id = $1`
	var u model.User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) StaffIDs(ctx context.Context) ([]int64, error) {
	const q = `SELECT id FROM users WHERE role = 'STAFF' ORDER BY id`
	var out []int64
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}
