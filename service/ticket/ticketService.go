// Package ticket drives the borrow-ticket lifecycle:
//
//	PENDING -> APPROVED -> PICKED_UP -> RETURNED
//	PENDING -> CANCELLED (member or staff)
//	APPROVED -> CANCELLED (pickup-expiry sweeper only)
//
// RETURNED and CANCELLED are terminal. Every transition locks the ticket
// row first so two actors can never race the same ticket.
package ticket

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/config"
	"github.com/longphan04/library-service-BE/model"
	copyrepo "github.com/longphan04/library-service-BE/repository/copy"
	holdrepo "github.com/longphan04/library-service-BE/repository/hold"
	itemrepo "github.com/longphan04/library-service-BE/repository/item"
	ticketrepo "github.com/longphan04/library-service-BE/repository/ticket"
	"github.com/longphan04/library-service-BE/util/apperr"
	"github.com/longphan04/library-service-BE/util/codegen"
)

// staffTransitions is the transition table for staff actions.
// APPROVED -> CANCELLED is deliberately absent: only the pickup-expiry
// sweeper takes that edge.
var staffTransitions = map[model.TicketStatus][]model.TicketStatus{
	model.TicketPending:   {model.TicketApproved, model.TicketCancelled},
	model.TicketApproved:  {model.TicketPickedUp},
	model.TicketPickedUp:  {model.TicketReturned},
	model.TicketReturned:  {},
	model.TicketCancelled: {},
}

// ItemSyncer cascades a terminal ticket status onto its items, inside
// the caller's transaction. Implemented by the item service.
type ItemSyncer interface {
	SyncWithTicketFinalStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, staffID *int64) (int, error)
}

// Notifier delivers best-effort lifecycle notifications. Implementations
// must never fail the calling transition; errors are logged internally.
type Notifier interface {
	StaffBorrowCreated(ctx context.Context, t model.BorrowTicket)
	MemberApproved(ctx context.Context, t model.BorrowTicket)
	MemberPickedUp(ctx context.Context, t model.BorrowTicket)
	MemberReturned(ctx context.Context, t model.BorrowTicket)
	MemberCancelled(ctx context.Context, t model.BorrowTicket, reason string)
}

type CreateInput struct {
	MemberID int64
	BookID   int64   // direct borrow; exclusive with HoldIDs
	HoldIDs  []int64 // borrow from holds; exclusive with BookID
}

type Service interface {
	// Create opens a PENDING ticket from either one book (direct) or the
	// member's active holds. Returns the ticket code.
	Create(ctx context.Context, in CreateInput) (string, error)

	// StaffUpdate advances the ticket along the staff transition table.
	StaffUpdate(ctx context.Context, ticketID, staffID int64, next model.TicketStatus) (*model.BorrowTicket, error)

	// MemberCancel cancels the member's own ticket while it is PENDING.
	MemberCancel(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error)

	// MemberRenew extends due_date by the renew window, once, before the
	// current due date passes.
	MemberRenew(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error)

	List(ctx context.Context, q ListQuery) (*PagedTickets, error)
	Detail(ctx context.Context, ticketID, viewerID int64, viewerIsStaff bool) (*TicketDetail, error)
}

type service struct {
	tickets ticketrepo.Repo
	items   itemrepo.Repo
	holds   holdrepo.Repo
	copies  copyrepo.Repo
	syncer  ItemSyncer
	notif   Notifier
	now     func() time.Time
}

type Option func(*service)

func WithNow(fn func() time.Time) Option {
	return func(s *service) { s.now = fn }
}

func New(tickets ticketrepo.Repo, items itemrepo.Repo, holds holdrepo.Repo, copies copyrepo.Repo, syncer ItemSyncer, notif Notifier, opts ...Option) Service {
	s := &service{
		tickets: tickets,
		items:   items,
		holds:   holds,
		copies:  copies,
		syncer:  syncer,
		notif:   notif,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, in CreateInput) (string, error) {
	if in.MemberID <= 0 {
		return "", apperr.New(apperr.BadInput, "member_id is required")
	}
	direct := in.BookID > 0
	fromHolds := len(in.HoldIDs) > 0
	if direct == fromHolds {
		return "", apperr.New(apperr.BadInput, "supply exactly one of book_id or hold_ids")
	}
	if len(in.HoldIDs) > config.MaxItemsPerTicket {
		return "", apperr.Newf(apperr.ItemLimit, "a ticket can hold at most %d items", config.MaxItemsPerTicket)
	}

	// Active-ticket cap, checked against the most recent tickets only.
	// See config.CheckRecentTickets for the documented approximation.
	recent, err := s.tickets.RecentStatuses(ctx, in.MemberID, config.CheckRecentTickets)
	if err != nil {
		return "", err
	}
	active := 0
	for _, st := range recent {
		if !model.TicketTerminal(st) {
			active++
		}
	}
	if active >= config.MaxActiveTickets {
		return "", apperr.Newf(apperr.TicketLimit, "at most %d active tickets per member", config.MaxActiveTickets)
	}

	var created model.BorrowTicket
	err = s.tickets.WithTx(ctx, func(tx *sqlx.Tx) error {
		t := &model.BorrowTicket{
			Code:        codegen.TicketCode(),
			MemberID:    in.MemberID,
			Status:      model.TicketPending,
			RequestedAt: s.now(),
		}
		if err := s.tickets.InsertTx(ctx, tx, t); err != nil {
			return err
		}

		var copies []model.BookCopy
		if direct {
			copy, err := s.copies.PickAvailableTx(ctx, tx, in.BookID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperr.New(apperr.NoAvailableCopy, "no available copy for this book")
				}
				return err
			}
			copies = []model.BookCopy{*copy}
		} else {
			var err error
			if copies, err = s.consumeHoldsTx(ctx, tx, in.MemberID, in.HoldIDs); err != nil {
				return err
			}
		}

		items := make([]model.BorrowItem, 0, len(copies))
		for _, c := range copies {
			items = append(items, model.BorrowItem{
				TicketID: t.ID,
				CopyID:   c.ID,
				BookID:   c.BookID,
				Status:   model.ItemBorrowed,
			})
		}
		if err := s.items.BulkInsertTx(ctx, tx, items); err != nil {
			return err
		}

		books := make(map[int64]struct{}, len(copies))
		for _, c := range copies {
			if err := s.copies.SetStatusTx(ctx, tx, c.ID, model.CopyBorrowed); err != nil {
				return err
			}
			books[c.BookID] = struct{}{}
		}
		for bookID := range books {
			if err := s.copies.RecalcCountersTx(ctx, tx, bookID); err != nil {
				return err
			}
		}

		created = *t
		return nil
	})
	if err != nil {
		return "", err
	}

	go s.notif.StaffBorrowCreated(context.WithoutCancel(ctx), created)

	return created.Code, nil
}

// consumeHoldsTx locks the member's holds and their copies, verifies the
// copies are still HELD, and deletes the holds: from here on the copies
// belong to the ticket.
func (s *service) consumeHoldsTx(ctx context.Context, tx *sqlx.Tx, memberID int64, holdIDs []int64) ([]model.BookCopy, error) {
	holds, err := s.holds.LockOwnedTx(ctx, tx, memberID, holdIDs)
	if err != nil {
		return nil, err
	}
	if len(holds) != len(holdIDs) {
		return nil, apperr.New(apperr.BadInput, "some holds do not exist or are not yours")
	}

	copyIDs := make([]int64, 0, len(holds))
	for _, h := range holds {
		copyIDs = append(copyIDs, h.CopyID)
	}
	copies, err := s.copies.LockByIDsTx(ctx, tx, copyIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.BookCopy, len(copies))
	for _, c := range copies {
		byID[c.ID] = c
	}

	out := make([]model.BookCopy, 0, len(holds))
	for _, h := range holds {
		c, ok := byID[h.CopyID]
		if !ok {
			return nil, apperr.New(apperr.NotFound, "book copy not found")
		}
		if c.Status != model.CopyHeld {
			return nil, apperr.New(apperr.InvalidState, "only copies currently on hold can be borrowed")
		}
		out = append(out, c)
	}

	if err := s.holds.DeleteByIDsTx(ctx, tx, holdIDs); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) StaffUpdate(ctx context.Context, ticketID, staffID int64, next model.TicketStatus) (*model.BorrowTicket, error) {
	if !model.ValidTicketStatus(next) {
		return nil, apperr.Newf(apperr.BadInput, "unknown ticket status %q", next)
	}

	var updated model.BorrowTicket
	err := s.tickets.WithTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.tickets.GetForUpdateTx(ctx, tx, ticketID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.New(apperr.NotFound, "borrow ticket not found")
			}
			return err
		}

		if !transitionAllowed(t.Status, next) {
			return apperr.Newf(apperr.InvalidTransition,
				"cannot transition ticket from %s to %s", t.Status, next)
		}

		now := s.now()
		switch {
		case t.Status == model.TicketPending && next == model.TicketApproved:
			exp := addDays(now, config.PickupWindowDays)
			t.ApprovedAt = &now
			t.ApprovedBy = &staffID
			t.PickupExpiresAt = &exp
		case t.Status == model.TicketPending && next == model.TicketCancelled:
			t.CancelledAt = &now
		case t.Status == model.TicketApproved && next == model.TicketPickedUp:
			due := addDays(now, config.BorrowPeriodDays)
			t.PickedUpAt = &now
			t.PickedUpBy = &staffID
			t.DueDate = &due
		case t.Status == model.TicketPickedUp && next == model.TicketReturned:
			t.ReturnedAt = &now
		}
		t.Status = next

		if err := s.tickets.UpdateTransitionTx(ctx, tx, t); err != nil {
			return err
		}

		if model.TicketTerminal(next) {
			if _, err := s.syncer.SyncWithTicketFinalStatusTx(ctx, tx, t.ID, &staffID); err != nil {
				return err
			}
		}

		updated = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	switch next {
	case model.TicketApproved:
		go s.notif.MemberApproved(bg, updated)
	case model.TicketPickedUp:
		go s.notif.MemberPickedUp(bg, updated)
	case model.TicketReturned:
		go s.notif.MemberReturned(bg, updated)
	case model.TicketCancelled:
		go s.notif.MemberCancelled(bg, updated, "cancelled by staff")
	}

	return &updated, nil
}

func (s *service) MemberCancel(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error) {
	var updated *model.BorrowTicket
	err := s.tickets.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err := s.tickets.CancelPendingOwnedTx(ctx, tx, ticketID, memberID, s.now())
		if err != nil {
			return err
		}
		if affected == 0 {
			// Not found and wrong state surface differently.
			if _, err := s.tickets.GetOwnedTx(ctx, tx, ticketID, memberID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return apperr.New(apperr.NotFound, "borrow ticket not found")
				}
				return err
			}
			return apperr.New(apperr.InvalidState, "only a PENDING ticket can be cancelled")
		}

		if _, err := s.syncer.SyncWithTicketFinalStatusTx(ctx, tx, ticketID, nil); err != nil {
			return err
		}

		t, err := s.tickets.GetOwnedTx(ctx, tx, ticketID, memberID)
		if err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) MemberRenew(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error) {
	t, err := s.tickets.GetOwned(ctx, ticketID, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "borrow ticket not found")
		}
		return nil, err
	}

	now := s.now()
	if t.Status != model.TicketPickedUp {
		return nil, apperr.New(apperr.RenewNotAllowed, "only a PICKED_UP ticket can be renewed")
	}
	if t.DueDate == nil {
		return nil, apperr.New(apperr.InvalidState, "ticket has no due date")
	}
	if t.RenewCount >= config.MaxRenewCount {
		return nil, apperr.New(apperr.RenewNotAllowed, "ticket was already renewed")
	}
	if t.DueDate.Before(now) {
		return nil, apperr.New(apperr.RenewNotAllowed, "ticket is overdue, renewal closed")
	}

	// Conditional write is the authority; the reads above only shape the
	// error message. Zero rows means a concurrent renew or state change
	// won.
	newDue := addDays(*t.DueDate, config.RenewExtendDays)
	affected, err := s.tickets.RenewConditional(ctx, ticketID, memberID, newDue, now)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, apperr.New(apperr.RenewNotAllowed, "ticket cannot be renewed")
	}

	t.DueDate = &newDue
	t.RenewCount = config.MaxRenewCount
	return t, nil
}

func transitionAllowed(from, to model.TicketStatus) bool {
	for _, allowed := range staffTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func addDays(t time.Time, days int) time.Time {
	return t.Add(time.Duration(days) * 24 * time.Hour)
}
