package notifrepo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

type Repo interface {
	Insert(ctx context.Context, n *model.Notification) error
	BulkInsert(ctx context.Context, ns []model.Notification) error
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error)
}

type repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) Repo { return &repo{db} }

func (r *repo) Insert(ctx context.Context, n *model.Notification) error {
	const q = `
		INSERT INTO notifications (user_id, type, title, content, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING notification_id, created_at`
	return r.db.QueryRowContext(ctx, q, n.UserID, n.Type, n.Title, n.Content, n.ReferenceID).
		Scan(&n.ID, &n.CreatedAt)
}

func (r *repo) BulkInsert(ctx context.Context, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	const q = `
		INSERT INTO notifications (user_id, type, title, content, reference_id)
		VALUES (:user_id, :type, :title, :content, :reference_id)`
	_, err := r.db.NamedExecContext(ctx, q, ns)
	return err
}

func (r *repo) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]model.Notification, int64, error) {
	const cq = `SELECT COUNT(*) FROM notifications WHERE user_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, cq, userID); err != nil {
		return nil, 0, err
	}

	const q = `
		SELECT notification_id, user_id, type, title, content, reference_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY notification_id DESC
		OFFSET $2 LIMIT $3`
	var out []model.Notification
	if err := r.db.SelectContext(ctx, &out, q, userID, offset, limit); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repo) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(`
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = ?
		AND notification_id IN (?)
		AND is_read = FALSE`, userID, ids)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
