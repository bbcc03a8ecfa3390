// repository/copy/repo.go
package copyrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

type Repo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	GetByID(ctx context.Context, copyID int64) (*model.BookCopy, error)
	ListByBook(ctx context.Context, bookID int64) ([]model.BookCopy, error)

	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyID int64) (*model.BookCopy, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, c *model.BookCopy) error
	DeleteTx(ctx context.Context, tx *sqlx.Tx, copyID int64) error
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error

	// PickAvailableTx locks one AVAILABLE copy of the book, chosen at
	// random. SKIP LOCKED keeps two concurrent callers off the same row.
	// Returns sql.ErrNoRows when nothing could be locked.
	PickAvailableTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.BookCopy, error)

	// LockByIDsTx locks the given copies and returns them keyed by id.
	LockByIDsTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error)

	// FilterHeldForUpdateTx locks and returns only the given copies that
	// are currently HELD.
	FilterHeldForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error)

	CountByBookTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (int64, error)
	BarcodeExistsTx(ctx context.Context, tx *sqlx.Tx, barcode string) (bool, error)
	LastNoteIndexTx(ctx context.Context, tx *sqlx.Tx, bookID int64, prefix string) (int, error)

	// RecalcCountersTx recomputes books.total_copies/available_copies
	// from the live copy rows. Called at the end of every operation that
	// creates, deletes, or re-statuses a copy of the book.
	RecalcCountersTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error

	// RecalcBorrowCountTx recomputes books.total_borrow_count as the
	// count of RETURNED borrow items for the book.
	RecalcBorrowCountTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error
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

func (r *repo) GetByID(ctx context.Context, copyID int64) (*model.BookCopy, error) {
	const q = `
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE copy_id = $1`
	var c model.BookCopy
	if err := r.db.GetContext(ctx, &c, q, copyID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) ListByBook(ctx context.Context, bookID int64) ([]model.BookCopy, error) {
	const q = `
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE book_id = $1
		ORDER BY created_at DESC, copy_id DESC`
	var out []model.BookCopy
	if err := r.db.SelectContext(ctx, &out, q, bookID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyID int64) (*model.BookCopy, error) {
	const q = `
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE copy_id = $1
		FOR UPDATE`
	var c model.BookCopy
	if err := tx.GetContext(ctx, &c, q, copyID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) InsertTx(ctx context.Context, tx *sqlx.Tx, c *model.BookCopy) error {
	const q = `
		INSERT INTO book_copies (book_id, barcode, status, note, acquired_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING copy_id, created_at`
	return tx.QueryRowContext(ctx, q, c.BookID, c.Barcode, c.Status, c.Note, c.AcquiredAt).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *repo) DeleteTx(ctx context.Context, tx *sqlx.Tx, copyID int64) error {
	const q = `DELETE FROM book_copies WHERE copy_id = $1`
	_, err := tx.ExecContext(ctx, q, copyID)
	return err
}

func (r *repo) SetStatusTx(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error {
	const q = `UPDATE book_copies SET status = $2 WHERE copy_id = $1`
	res, err := tx.ExecContext(ctx, q, copyID, status)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) PickAvailableTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.BookCopy, error) {
	// ORDER BY random() is fine here: one row, and per-book copy sets
	// are small (capped at 99). No fairness guarantee intended.
	const q = `
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE book_id = $1
		AND status = 'AVAILABLE'
		ORDER BY random()
		LIMIT 1
		FOR UPDATE SKIP LOCKED`
	var c model.BookCopy
	if err := tx.GetContext(ctx, &c, q, bookID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error) {
	if len(copyIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE copy_id IN (?)
		ORDER BY copy_id
		FOR UPDATE`, copyIDs)
	if err != nil {
		return nil, err
	}
	var out []model.BookCopy
	if err := tx.SelectContext(ctx, &out, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) FilterHeldForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error) {
	if len(copyIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
		SELECT copy_id, book_id, barcode, status, note, acquired_at, created_at
		FROM book_copies
		WHERE copy_id IN (?)
		AND status = 'HELD'
		ORDER BY copy_id
		FOR UPDATE`, copyIDs)
	if err != nil {
		return nil, err
	}
	var out []model.BookCopy
	if err := tx.SelectContext(ctx, &out, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) CountByBookTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM book_copies WHERE book_id = $1`
	var n int64
	err := tx.GetContext(ctx, &n, q, bookID)
	return n, err
}

func (r *repo) BarcodeExistsTx(ctx context.Context, tx *sqlx.Tx, barcode string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM book_copies WHERE barcode = $1)`
	var exists bool
	err := tx.GetContext(ctx, &exists, q, barcode)
	return exists, err
}

func (r *repo) LastNoteIndexTx(ctx context.Context, tx *sqlx.Tx, bookID int64, prefix string) (int, error) {
	// Notes look like "C-07"; take the max numeric suffix for the prefix.
	const q = `
		SELECT COALESCE(MAX(CAST(SUBSTRING(note FROM '^.-([0-9]{2})$') AS INT)), 0)
		FROM book_copies
		WHERE book_id = $1
		AND note LIKE $2 || '-%'`
	var n int
	if err := tx.GetContext(ctx, &n, q, bookID, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (r *repo) RecalcCountersTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	const q = `
		UPDATE books b
		SET total_copies = src.total,
			available_copies = src.available
		FROM (
			SELECT COUNT(*)::BIGINT AS total,
				COALESCE(COUNT(*) FILTER (WHERE status = 'AVAILABLE'), 0)::BIGINT AS available
			FROM book_copies
			WHERE book_id = $1
		) src
		WHERE b.book_id = $1`
	_, err := tx.ExecContext(ctx, q, bookID)
	return err
}

func (r *repo) RecalcBorrowCountTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	const q = `
		UPDATE books b
		SET total_borrow_count = (
			SELECT COUNT(*)
			FROM borrow_items
			WHERE book_id = $1
			AND status = 'RETURNED'
		)
		WHERE b.book_id = $1`
	_, err := tx.ExecContext(ctx, q, bookID)
	return err
}
