// repository/hold/repo.go
package holdrepo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

// MyHoldRow is the member-facing hold summary with book and copy info.
type MyHoldRow struct {
	HoldID    int64     `json:"hold_id" db:"hold_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CopyID    int64     `json:"copy_id" db:"copy_id"`
	CopyNote  *string   `json:"copy_note,omitempty" db:"copy_note"`
	BookID    int64     `json:"book_id" db:"book_id"`
	BookTitle string    `json:"book_title" db:"book_title"`
	CoverURL  *string   `json:"cover_url,omitempty" db:"cover_url"`
}

type Repo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	ListByMember(ctx context.Context, memberID int64) ([]MyHoldRow, error)

	InsertTx(ctx context.Context, tx *sqlx.Tx, h *model.BookHold) error

	// LockOwnedTx locks holds by id restricted to the owning member.
	LockOwnedTx(ctx context.Context, tx *sqlx.Tx, memberID int64, holdIDs []int64) ([]model.BookHold, error)

	// DeleteOwnedTx deletes the member's holds among holdIDs and returns
	// the copy ids they referenced. Ids not owned are silently skipped.
	DeleteOwnedTx(ctx context.Context, tx *sqlx.Tx, memberID int64, holdIDs []int64) ([]int64, error)

	DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, holdIDs []int64) error

	// DeleteExpiredTx deletes up to limit holds with expires_at <= now,
	// soonest-expiring first, and returns the referenced copy ids.
	// SKIP LOCKED makes concurrent sweeps coexist with user traffic.
	DeleteExpiredTx(ctx context.Context, tx *sqlx.Tx, now time.Time, limit int) ([]int64, error)
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

func (r *repo) ListByMember(ctx context.Context, memberID int64) ([]MyHoldRow, error) {
	const q = `
		SELECT h.hold_id, h.expires_at,
			c.copy_id, c.note AS copy_note,
			b.book_id, b.title AS book_title, b.cover_url
		FROM book_holds h
		JOIN book_copies c ON c.copy_id = h.copy_id
		JOIN books b ON b.book_id = c.book_id
		WHERE h.member_id = $1
		ORDER BY h.hold_id DESC`
	var out []MyHoldRow
	if err := r.db.SelectContext(ctx, &out, q, memberID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) InsertTx(ctx context.Context, tx *sqlx.Tx, h *model.BookHold) error {
	const q = `
		INSERT INTO book_holds (member_id, copy_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING hold_id, created_at`
	return tx.QueryRowContext(ctx, q, h.MemberID, h.CopyID, h.ExpiresAt).
		Scan(&h.ID, &h.CreatedAt)
}

func (r *repo) LockOwnedTx(ctx context.Context, tx *sqlx.Tx, memberID int64, holdIDs []int64) ([]model.BookHold, error) {
	if len(holdIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
		SELECT hold_id, member_id, copy_id, expires_at, created_at
		FROM book_holds
		WHERE hold_id IN (?)
		AND member_id = ?
		ORDER BY hold_id
		FOR UPDATE`, holdIDs, memberID)
	if err != nil {
		return nil, err
	}
	var out []model.BookHold
	if err := tx.SelectContext(ctx, &out, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) DeleteOwnedTx(ctx context.Context, tx *sqlx.Tx, memberID int64, holdIDs []int64) ([]int64, error) {
	if len(holdIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`
		DELETE FROM book_holds
		WHERE hold_id IN (?)
		AND member_id = ?
		RETURNING copy_id`, holdIDs, memberID)
	if err != nil {
		return nil, err
	}
	var copyIDs []int64
	if err := tx.SelectContext(ctx, &copyIDs, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return copyIDs, nil
}

func (r *repo) DeleteByIDsTx(ctx context.Context, tx *sqlx.Tx, holdIDs []int64) error {
	if len(holdIDs) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM book_holds WHERE hold_id IN (?)`, holdIDs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(q), args...)
	return err
}

func (r *repo) DeleteExpiredTx(ctx context.Context, tx *sqlx.Tx, now time.Time, limit int) ([]int64, error) {
	const q = `
		DELETE FROM book_holds
		WHERE hold_id IN (
			SELECT hold_id
			FROM book_holds
			WHERE expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING copy_id`
	var copyIDs []int64
	if err := tx.SelectContext(ctx, &copyIDs, q, now, limit); err != nil {
		return nil, err
	}
	return copyIDs, nil
}
