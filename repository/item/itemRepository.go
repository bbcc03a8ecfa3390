// repository/item/repo.go
package itemrepo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

// DetailRow carries an item plus the copy note and book summary for the
// ticket detail view.
type DetailRow struct {
	model.BorrowItem
	CopyNote  *string `db:"copy_note"`
	BookTitle string  `db:"book_title"`
	CoverURL  *string `db:"cover_url"`
}

type Repo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	BulkInsertTx(ctx context.Context, tx *sqlx.Tx, items []model.BorrowItem) error

	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error)

	// ListNotInStatusTx locks and returns the ticket's items whose status
	// differs from target; the final-status cascade only touches those.
	ListNotInStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error)

	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error

	// CountNotDoneTx counts the ticket's items outside {RETURNED,REMOVED}.
	CountNotDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error)

	ListByTicket(ctx context.Context, ticketID int64) ([]DetailRow, error)
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

func (r *repo) BulkInsertTx(ctx context.Context, tx *sqlx.Tx, items []model.BorrowItem) error {
	if len(items) == 0 {
		return nil
	}
	const q = `
		INSERT INTO borrow_items (ticket_id, copy_id, book_id, status)
		VALUES (:ticket_id, :copy_id, :book_id, :status)`
	_, err := tx.NamedExecContext(ctx, q, items)
	return err
}

const itemCols = `borrow_item_id, ticket_id, copy_id, book_id, status, returned_at, returned_by`

func (r *repo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
	const q = `
		SELECT ` + itemCols + `
		FROM borrow_items
		WHERE borrow_item_id = $1
		FOR UPDATE`
	var it model.BorrowItem
	if err := tx.GetContext(ctx, &it, q, itemID); err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *repo) ListNotInStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error) {
	const q = `
		SELECT ` + itemCols + `
		FROM borrow_items
		WHERE ticket_id = $1
		AND status <> $2
		ORDER BY borrow_item_id
		FOR UPDATE`
	var out []model.BorrowItem
	if err := tx.SelectContext(ctx, &out, q, ticketID, target); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error {
	const q = `
		UPDATE borrow_items
		SET status = $2,
			returned_at = $3,
			returned_by = $4
		WHERE borrow_item_id = $1`
	_, err := tx.ExecContext(ctx, q, itemID, status, returnedAt, returnedBy)
	return err
}

func (r *repo) CountNotDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM borrow_items
		WHERE ticket_id = $1
		AND status NOT IN ('RETURNED', 'REMOVED')`
	var n int64
	err := tx.GetContext(ctx, &n, q, ticketID)
	return n, err
}

func (r *repo) ListByTicket(ctx context.Context, ticketID int64) ([]DetailRow, error) {
	const q = `
		SELECT i.borrow_item_id, i.ticket_id, i.copy_id, i.book_id, i.status,
			i.returned_at, i.returned_by,
			c.note AS copy_note,
			b.title AS book_title, b.cover_url
		FROM borrow_items i
		JOIN book_copies c ON c.copy_id = i.copy_id
		JOIN books b ON b.book_id = i.book_id
		WHERE i.ticket_id = $1
		ORDER BY i.borrow_item_id`
	var out []DetailRow
	if err := r.db.SelectContext(ctx, &out, q, ticketID); err != nil {
		return nil, err
	}
	return out, nil
}
