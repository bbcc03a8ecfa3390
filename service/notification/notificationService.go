// Package notification stores and lists in-app notifications. Emission
// is best-effort: a failed insert is logged and never propagated, so a
// notification can never roll back the state transition that caused it.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/longphan04/library-service-BE/model"
	notifrepo "github.com/longphan04/library-service-BE/repository/notification"
	userrepo "github.com/longphan04/library-service-BE/repository/user"
	"github.com/longphan04/library-service-BE/util/apperr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Paged struct {
	Items []model.Notification `json:"items"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type Service interface {
	ListMine(ctx context.Context, userID int64, page, limit int) (*Paged, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error)

	// Emitter methods, all best-effort.
	StaffBorrowCreated(ctx context.Context, t model.BorrowTicket)
	MemberApproved(ctx context.Context, t model.BorrowTicket)
	MemberPickedUp(ctx context.Context, t model.BorrowTicket)
	MemberReturned(ctx context.Context, t model.BorrowTicket)
	MemberCancelled(ctx context.Context, t model.BorrowTicket, reason string)
	MemberOverdue(ctx context.Context, t model.BorrowTicket)
}

type service struct {
	notifs notifrepo.Repo
	users  userrepo.Repo
	log    *slog.Logger
}

func New(notifs notifrepo.Repo, users userrepo.Repo, log *slog.Logger) Service {
	return &service{notifs: notifs, users: users, log: log}
}

func (s *service) ListMine(ctx context.Context, userID int64, page, limit int) (*Paged, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	items, total, err := s.notifs.ListByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	return &Paged{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (s *service) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.BadInput, "notification_ids is required")
	}
	return s.notifs.MarkRead(ctx, userID, ids)
}

// StaffBorrowCreated fans one notification out to every staff user.
func (s *service) StaffBorrowCreated(ctx context.Context, t model.BorrowTicket) {
	staffIDs, err := s.users.StaffIDs(ctx)
	if err != nil {
		s.log.Error("notify staff borrow created", "ticket", t.Code, "err", err)
		return
	}
	if len(staffIDs) == 0 {
		return
	}
	ns := make([]model.Notification, 0, len(staffIDs))
	for _, id := range staffIDs {
		ns = append(ns, model.Notification{
			UserID:      id,
			Type:        model.NotifBorrowCreated,
			Title:       "New borrow ticket",
			Content:     fmt.Sprintf("Ticket #%s is waiting for approval.", t.Code),
			ReferenceID: &t.ID,
		})
	}
	if err := s.notifs.BulkInsert(ctx, ns); err != nil {
		s.log.Error("notify staff borrow created", "ticket", t.Code, "err", err)
	}
}

func (s *service) MemberApproved(ctx context.Context, t model.BorrowTicket) {
	content := fmt.Sprintf("Ticket #%s was approved. Please pick your books up before %s.",
		t.Code, formatDate(t.PickupExpiresAt))
	s.emit(ctx, t, model.NotifBorrowApproved, "Borrow ticket approved", content)
}

func (s *service) MemberPickedUp(ctx context.Context, t model.BorrowTicket) {
	content := fmt.Sprintf("Books for ticket #%s picked up. Due back on %s.",
		t.Code, formatDate(t.DueDate))
	s.emit(ctx, t, model.NotifBorrowPickedUp, "Books picked up", content)
}

func (s *service) MemberReturned(ctx context.Context, t model.BorrowTicket) {
	content := fmt.Sprintf("Ticket #%s is complete. Thank you!", t.Code)
	s.emit(ctx, t, model.NotifBorrowReturned, "Books returned", content)
}

func (s *service) MemberCancelled(ctx context.Context, t model.BorrowTicket, reason string) {
	content := fmt.Sprintf("Ticket #%s was cancelled.", t.Code)
	if reason != "" {
		content += " Reason: " + reason
	}
	s.emit(ctx, t, model.NotifBorrowCancel, "Borrow ticket cancelled", content)
}

func (s *service) MemberOverdue(ctx context.Context, t model.BorrowTicket) {
	content := fmt.Sprintf("Ticket #%s passed its due date (%s). Please return the books.",
		t.Code, formatDate(t.DueDate))
	s.emit(ctx, t, model.NotifBorrowOverdue, "Books overdue", content)
}

func (s *service) emit(ctx context.Context, t model.BorrowTicket, typ model.NotificationType, title, content string) {
	n := &model.Notification{
		UserID:      t.MemberID,
		Type:        typ,
		Title:       title,
		Content:     content,
		ReferenceID: &t.ID,
	}
	if err := s.notifs.Insert(ctx, n); err != nil {
		s.log.Error("notify member", "type", typ, "ticket", t.Code, "err", err)
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
