package ticketrepo

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

// ListRow is one ticket summary row for listings, joined with the
// member's identity for the staff view.
type ListRow struct {
	model.BorrowTicket
	MemberEmail    string  `db:"member_email"`
	MemberFullName *string `db:"member_full_name"`
}

// ListFilter narrows the staff listing. Zero values mean "no filter".
type ListFilter struct {
	Status   model.TicketStatus
	MemberID int64  // restrict to one member (member-facing listing)
	NameLike string // substring match on the member's full name
	Offset   int
	Limit    int
}

type Repo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error

	// RecentStatuses returns the statuses of the member's most recent
	// tickets, newest first, capped at limit.
	RecentStatuses(ctx context.Context, memberID int64, limit int) ([]model.TicketStatus, error)

	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error)
	GetOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64) (*model.BorrowTicket, error)
	GetOwned(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error)

	// UpdateTransitionTx writes the transition-bearing columns of t.
	UpdateTransitionTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error

	// CancelPendingOwnedTx cancels the member's ticket only while it is
	// still PENDING. Returns rows affected.
	CancelPendingOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64, now time.Time) (int64, error)

	// RenewConditional extends due_date only when the ticket is still
	// PICKED_UP, unrenewed, and not yet overdue. Zero rows affected means
	// the renewal lost to state or to a concurrent renew.
	RenewConditional(ctx context.Context, ticketID, memberID int64, newDue, now time.Time) (int64, error)

	// ReturnIfAllDoneTx flips the ticket to RETURNED unless it already
	// reached a terminal state. Returns rows affected.
	ReturnIfAllDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error)

	// Sweeper queries.
	ListExpiredPickup(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	CancelExpiredPickupTx(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error)
	ListOverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	MarkOverdueNotified(ctx context.Context, ticketIDs []int64) error

	List(ctx context.Context, f ListFilter) ([]ListRow, int64, error)
	GetDetail(ctx context.Context, ticketID int64) (*ListRow, error)
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

func (r *repo) InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error {
	const q = `
		INSERT INTO borrow_tickets (ticket_code, member_id, status, requested_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ticket_id`
	return tx.QueryRowContext(ctx, q, t.Code, t.MemberID, t.Status, t.RequestedAt).Scan(&t.ID)
}

func (r *repo) RecentStatuses(ctx context.Context, memberID int64, limit int) ([]model.TicketStatus, error) {
	const q = `
		SELECT status
		FROM borrow_tickets
		WHERE member_id = $1
		ORDER BY requested_at DESC, ticket_id DESC
		LIMIT $2`
	var out []model.TicketStatus
	if err := r.db.SelectContext(ctx, &out, q, memberID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

const ticketCols = `ticket_id, ticket_code, member_id, status, requested_at,
	approved_at, approved_by, pickup_expires_at, picked_up_at, picked_up_by,
	due_date, returned_at, cancelled_at, renew_count, overdue_notified`

func (r *repo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
	const q = `
		SELECT ` + ticketCols + `
		FROM borrow_tickets
		WHERE ticket_id = $1
		FOR UPDATE`
	var t model.BorrowTicket
	if err := tx.GetContext(ctx, &t, q, ticketID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) GetOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64) (*model.BorrowTicket, error) {
	const q = `
		SELECT ` + ticketCols + `
		FROM borrow_tickets
		WHERE ticket_id = $1
		AND member_id = $2`
	var t model.BorrowTicket
	if err := tx.GetContext(ctx, &t, q, ticketID, memberID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) GetOwned(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error) {
	const q = `
		SELECT ` + ticketCols + `
		FROM borrow_tickets
		WHERE ticket_id = $1
		AND member_id = $2`
	var t model.BorrowTicket
	if err := r.db.GetContext(ctx, &t, q, ticketID, memberID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) UpdateTransitionTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error {
	const q = `
		UPDATE borrow_tickets
		SET status = $2,
			approved_at = $3,
			approved_by = $4,
			pickup_expires_at = $5,
			picked_up_at = $6,
			picked_up_by = $7,
			due_date = $8,
			returned_at = $9,
			cancelled_at = $10,
			renew_count = $11
		WHERE ticket_id = $1`
	_, err := tx.ExecContext(ctx, q,
		t.ID, t.Status, t.ApprovedAt, t.ApprovedBy, t.PickupExpiresAt,
		t.PickedUpAt, t.PickedUpBy, t.DueDate, t.ReturnedAt, t.CancelledAt,
		t.RenewCount,
	)
	return err
}

func (r *repo) CancelPendingOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64, now time.Time) (int64, error) {
	const q = `
		UPDATE borrow_tickets
		SET status = 'CANCELLED',
			cancelled_at = $3
		WHERE ticket_id = $1
		AND member_id = $2
		AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, q, ticketID, memberID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repo) RenewConditional(ctx context.Context, ticketID, memberID int64, newDue, now time.Time) (int64, error) {
	const q = `
		UPDATE borrow_tickets
		SET due_date = $3,
			renew_count = 1
		WHERE ticket_id = $1
		AND member_id = $2
		AND status = 'PICKED_UP'
		AND renew_count = 0
		AND due_date >= $4`
	res, err := r.db.ExecContext(ctx, q, ticketID, memberID, newDue, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repo) ReturnIfAllDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error) {
	const q = `
		UPDATE borrow_tickets
		SET status = 'RETURNED',
			returned_at = $2
		WHERE ticket_id = $1
		AND status NOT IN ('RETURNED', 'CANCELLED')`
	res, err := tx.ExecContext(ctx, q, ticketID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repo) ListExpiredPickup(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	const q = `
		SELECT ` + ticketCols + `
		FROM borrow_tickets
		WHERE status = 'APPROVED'
		AND pickup_expires_at IS NOT NULL
		AND pickup_expires_at <= $1
		ORDER BY pickup_expires_at ASC
		LIMIT $2`
	var out []model.BorrowTicket
	if err := r.db.SelectContext(ctx, &out, q, now, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) CancelExpiredPickupTx(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	// Double-checked: the list was taken outside the transaction, so a
	// staff pickup may have raced us. Only APPROVED rows still past the
	// deadline are cancelled.
	q, args, err := sqlx.In(`
		UPDATE borrow_tickets
		SET status = 'CANCELLED',
			cancelled_at = ?
		WHERE ticket_id IN (?)
		AND status = 'APPROVED'
		AND pickup_expires_at <= ?
		RETURNING ticket_id`, now, ticketIDs, now)
	if err != nil {
		return nil, err
	}
	var cancelled []int64
	if err := tx.SelectContext(ctx, &cancelled, tx.Rebind(q), args...); err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *repo) ListOverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	const q = `
		SELECT ` + ticketCols + `
		FROM borrow_tickets
		WHERE status = 'PICKED_UP'
		AND due_date IS NOT NULL
		AND due_date < $1
		AND overdue_notified = FALSE
		ORDER BY due_date ASC
		LIMIT $2`
	var out []model.BorrowTicket
	if err := r.db.SelectContext(ctx, &out, q, now, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) MarkOverdueNotified(ctx context.Context, ticketIDs []int64) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`
		UPDATE borrow_tickets
		SET overdue_notified = TRUE
		WHERE ticket_id IN (?)
		AND overdue_notified = FALSE`, ticketIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	return err
}

var listCols = []any{
	goqu.I("t.ticket_id"), goqu.I("t.ticket_code"), goqu.I("t.member_id"),
	goqu.I("t.status"), goqu.I("t.requested_at"), goqu.I("t.approved_at"),
	goqu.I("t.approved_by"), goqu.I("t.pickup_expires_at"), goqu.I("t.picked_up_at"),
	goqu.I("t.picked_up_by"), goqu.I("t.due_date"), goqu.I("t.returned_at"),
	goqu.I("t.cancelled_at"), goqu.I("t.renew_count"), goqu.I("t.overdue_notified"),
	goqu.I("u.email").As("member_email"), goqu.I("u.full_name").As("member_full_name"),
}

// List composes the filtered listing with goqu: the status filter, the
// member restriction, and the name search are all optional.
func (r *repo) List(ctx context.Context, f ListFilter) ([]ListRow, int64, error) {
	base := goqu.Dialect("postgres").
		From(goqu.T("borrow_tickets").As("t")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("t.member_id"))))

	if f.Status != "" {
		base = base.Where(goqu.I("t.status").Eq(string(f.Status)))
	}
	if f.MemberID > 0 {
		base = base.Where(goqu.I("t.member_id").Eq(f.MemberID))
	}
	if f.NameLike != "" {
		base = base.Where(goqu.I("u.full_name").ILike("%" + f.NameLike + "%"))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := base.Select(listCols...).
		Order(goqu.I("t.requested_at").Desc(), goqu.I("t.ticket_id").Desc()).
		Offset(uint(f.Offset)).
		Limit(uint(f.Limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}
	var rows []ListRow
	if err := r.db.SelectContext(ctx, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repo) GetDetail(ctx context.Context, ticketID int64) (*ListRow, error) {
	const q = `
		SELECT t.ticket_id, t.ticket_code, t.member_id, t.status, t.requested_at,
			t.approved_at, t.approved_by, t.pickup_expires_at, t.picked_up_at,
			t.picked_up_by, t.due_date, t.returned_at, t.cancelled_at,
			t.renew_count, t.overdue_notified,
			u.email AS member_email, u.full_name AS member_full_name
		FROM borrow_tickets t
		JOIN users u ON u.id = t.member_id
		WHERE t.ticket_id = $1`
	var row ListRow
	if err := r.db.GetContext(ctx, &row, q, ticketID); err != nil {
		return nil, err
	}
	return &row, nil
}
