package bookrepo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

type Repo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Book) error
	Get(ctx context.Context, bookID int64) (*model.Book, error)
	GetTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)

	// AvailableCopies reads the cached counter; the cheap pre-check for
	// hold/ticket creation. Counter writes belong to the copy repo.
	AvailableCopies(ctx context.Context, bookID int64) (int64, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const bookCols = `book_id, title, cover_url, total_copies, available_copies, total_borrow_count, created_at`

func (r *repo) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Book) error {
	const q = `
		INSERT INTO books (title, cover_url)
		VALUES ($1, $2)
		RETURNING book_id, created_at`
	return tx.QueryRowContext(ctx, q, b.Title, b.CoverURL).Scan(&b.ID, &b.CreatedAt)
}

func (r *repo) Get(ctx context.Context, bookID int64) (*model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE book_id = $1`
	var b model.Book
	if err := r.db.GetContext(ctx, &b, q, bookID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) GetTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE book_id = $1`
	var b model.Book
	if err := tx.GetContext(ctx, &b, q, bookID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books ORDER BY book_id DESC`
	var out []model.Book
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) AvailableCopies(ctx context.Context, bookID int64) (int64, error) {
	const q = `SELECT available_copies FROM books WHERE book_id = $1`
	var n int64
	err := r.db.GetContext(ctx, &n, q, bookID)
	return n, err
}
