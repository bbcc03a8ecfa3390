package ticket

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/longphan04/library-service-BE/model"
	ticketrepo "github.com/longphan04/library-service-BE/repository/ticket"
	"github.com/longphan04/library-service-BE/util/apperr"
)

const (
	defaultPageSize = 18
	maxPageSize     = 100
)

// ListQuery filters the ticket listing. MemberID restricts to one
// member (the member-facing listing); NameLike is staff-only search.
type ListQuery struct {
	Status   string
	MemberID int64
	NameLike string
	Page     int
	Limit    int
}

type TicketSummary struct {
	TicketID        int64              `json:"ticket_id"`
	TicketCode      string             `json:"ticket_code"`
	MemberID        int64              `json:"member_id"`
	Status          model.TicketStatus `json:"status"`
	RequestedAt     time.Time          `json:"requested_at"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	PickupExpiresAt *time.Time         `json:"pickup_expires_at,omitempty"`
	PickedUpAt      *time.Time         `json:"picked_up_at,omitempty"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	ReturnedAt      *time.Time         `json:"returned_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	RenewCount      int                `json:"renew_count"`
	IsOverdue       bool               `json:"is_overdue"`
	OverdueDays     int                `json:"overdue_days"`
	MemberEmail     string             `json:"member_email,omitempty"`
	MemberFullName  *string            `json:"member_full_name,omitempty"`
}

type PagedTickets struct {
	Items      []TicketSummary `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

type TicketItem struct {
	BorrowItemID int64            `json:"borrow_item_id"`
	Status       model.ItemStatus `json:"status"`
	CopyID       int64            `json:"copy_id"`
	CopyNote     *string          `json:"copy_note,omitempty"`
	BookID       int64            `json:"book_id"`
	BookTitle    string           `json:"book_title"`
	CoverURL     *string          `json:"cover_url,omitempty"`
	ReturnedAt   *time.Time       `json:"returned_at,omitempty"`
}

type TicketDetail struct {
	TicketSummary
	Items []TicketItem `json:"items"`
}

func (s *service) List(ctx context.Context, q ListQuery) (*PagedTickets, error) {
	status, err := normalizeStatusFilter(q.Status)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	rows, total, err := s.tickets.List(ctx, ticketrepo.ListFilter{
		Status:   status,
		MemberID: q.MemberID,
		NameLike: q.NameLike,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]TicketSummary, 0, len(rows))
	for _, r := range rows {
		items = append(items, s.toSummary(r, now))
	}
	return &PagedTickets{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *service) Detail(ctx context.Context, ticketID, viewerID int64, viewerIsStaff bool) (*TicketDetail, error) {
	row, err := s.tickets.GetDetail(ctx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "borrow ticket not found")
		}
		return nil, err
	}
	// A member only sees their own tickets; leak nothing about others.
	if !viewerIsStaff && row.MemberID != viewerID {
		return nil, apperr.New(apperr.NotFound, "borrow ticket not found")
	}

	itemRows, err := s.items.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	detail := &TicketDetail{
		TicketSummary: s.toSummary(*row, s.now()),
		Items:         make([]TicketItem, 0, len(itemRows)),
	}
	for _, it := range itemRows {
		detail.Items = append(detail.Items, TicketItem{
			BorrowItemID: it.ID,
			Status:       it.Status,
			CopyID:       it.CopyID,
			CopyNote:     it.CopyNote,
			BookID:       it.BookID,
			BookTitle:    it.BookTitle,
			CoverURL:     it.CoverURL,
			ReturnedAt:   it.ReturnedAt,
		})
	}
	return detail, nil
}

func (s *service) toSummary(r ticketrepo.ListRow, now time.Time) TicketSummary {
	isOverdue, overdueDays := computeOverdue(r.Status, r.DueDate, now)
	return TicketSummary{
		TicketID:        r.ID,
		TicketCode:      r.Code,
		MemberID:        r.MemberID,
		Status:          r.Status,
		RequestedAt:     r.RequestedAt,
		ApprovedAt:      r.ApprovedAt,
		PickupExpiresAt: r.PickupExpiresAt,
		PickedUpAt:      r.PickedUpAt,
		DueDate:         r.DueDate,
		ReturnedAt:      r.ReturnedAt,
		CancelledAt:     r.CancelledAt,
		RenewCount:      r.RenewCount,
		IsOverdue:       isOverdue,
		OverdueDays:     overdueDays,
		MemberEmail:     r.MemberEmail,
		MemberFullName:  r.MemberFullName,
	}
}

// computeOverdue flags PICKED_UP tickets past their due date. Overdue is
// a reporting concern only; it is not a ticket state.
func computeOverdue(status model.TicketStatus, due *time.Time, now time.Time) (bool, int) {
	if status != model.TicketPickedUp || due == nil || !due.Before(now) {
		return false, 0
	}
	days := int(math.Ceil(now.Sub(*due).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return true, days
}

func normalizeStatusFilter(raw string) (model.TicketStatus, error) {
	if raw == "" {
		return "", nil
	}
	st := model.TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !model.ValidTicketStatus(st) {
		return "", apperr.Newf(apperr.BadInput, "unknown ticket status %q", raw)
	}
	return st, nil
}
