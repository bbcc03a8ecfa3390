// Package item keeps each borrow item, and its copy, consistent with
// the owning ticket: direct staff edits while the ticket is PICKED_UP,
// and the cascade that runs when a ticket reaches a final state.
package item

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
	copyrepo "github.com/longphan04/library-service-BE/repository/copy"
	itemrepo "github.com/longphan04/library-service-BE/repository/item"
	ticketrepo "github.com/longphan04/library-service-BE/repository/ticket"
	"github.com/longphan04/library-service-BE/util/apperr"
)

type Service interface {
	// UpdateStatus is the staff edit of one item. staffID nil is the
	// system path, permitted only for CANCELLED (sweeper cascades).
	UpdateStatus(ctx context.Context, itemID int64, staffID *int64, next model.ItemStatus) (*model.BorrowItem, error)

	// SyncWithTicketFinalStatusTx forces every item of a RETURNED or
	// CANCELLED ticket over to the ticket's final status, freeing copies
	// as it goes. Runs in the caller's transaction; a no-op when the
	// ticket is missing or not terminal. Returns the items changed.
	SyncWithTicketFinalStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, staffID *int64) (int, error)

	ListByTicket(ctx context.Context, ticketID int64) ([]itemrepo.DetailRow, error)
}

type service struct {
	items   itemrepo.Repo
	tickets ticketrepo.Repo
	copies  copyrepo.Repo
	now     func() time.Time
}

type Option func(*service)

func WithNow(fn func() time.Time) Option {
	return func(s *service) { s.now = fn }
}

func New(items itemrepo.Repo, tickets ticketrepo.Repo, copies copyrepo.Repo, opts ...Option) Service {
	s := &service{items: items, tickets: tickets, copies: copies, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) UpdateStatus(ctx context.Context, itemID int64, staffID *int64, next model.ItemStatus) (*model.BorrowItem, error) {
	if !model.ValidItemStatus(next) {
		return nil, apperr.Newf(apperr.BadInput, "unknown item status %q", next)
	}

	isSystemCancel := staffID == nil && next == model.ItemCancelled
	if staffID == nil && !isSystemCancel {
		return nil, apperr.New(apperr.BadInput, "staff id is required")
	}

	var out *model.BorrowItem
	err := s.items.WithTx(ctx, func(tx *sqlx.Tx) error {
		it, err := s.updateStatusTx(ctx, tx, itemID, staffID, next, false)
		out = it
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) SyncWithTicketFinalStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, staffID *int64) (int, error) {
	ticket, err := s.tickets.GetForUpdateTx(ctx, tx, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if !model.TicketTerminal(ticket.Status) {
		return 0, nil
	}

	target := model.ItemStatus(ticket.Status) // RETURNED or CANCELLED
	items, err := s.items.ListNotInStatusTx(ctx, tx, ticketID, target)
	if err != nil {
		return 0, err
	}
	for _, it := range items {
		if _, err := s.updateStatusTx(ctx, tx, it.ID, staffID, target, true); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func (s *service) ListByTicket(ctx context.Context, ticketID int64) ([]itemrepo.DetailRow, error) {
	return s.items.ListByTicket(ctx, ticketID)
}

// updateStatusTx applies one item transition and its copy/counter side
// effects. forceSync bypasses the ticket-state and BORROWED-origin
// guards for the final-status cascade.
func (s *service) updateStatusTx(ctx context.Context, tx *sqlx.Tx, itemID int64, staffID *int64, next model.ItemStatus, forceSync bool) (*model.BorrowItem, error) {
	it, err := s.items.GetForUpdateTx(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "borrow item not found")
		}
		return nil, err
	}

	// Same-state update is a no-op returning success.
	if it.Status == next {
		return it, nil
	}

	isSystemCancel := staffID == nil && next == model.ItemCancelled

	if !forceSync && !isSystemCancel {
		ticket, err := s.tickets.GetForUpdateTx(ctx, tx, it.TicketID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if ticket != nil {
			if model.TicketTerminal(ticket.Status) {
				return nil, apperr.New(apperr.InvalidState, "ticket already finished, item is read-only")
			}
			// Items can only be edited once the books are physically out.
			if ticket.Status != model.TicketPickedUp {
				return nil, apperr.New(apperr.InvalidState, "items can only be updated while the ticket is PICKED_UP")
			}
		}
	}

	if !forceSync && it.Status != model.ItemBorrowed {
		return nil, apperr.Newf(apperr.InvalidTransition,
			"borrow item is %s, cannot move to %s", it.Status, next)
	}

	var returnedAt *time.Time
	var returnedBy *int64
	if next == model.ItemReturned {
		now := s.now()
		returnedAt = &now
		returnedBy = staffID
	}
	if err := s.items.UpdateStatusTx(ctx, tx, it.ID, next, returnedAt, returnedBy); err != nil {
		return nil, err
	}

	switch next {
	case model.ItemReturned, model.ItemCancelled:
		if err := s.copies.SetStatusTx(ctx, tx, it.CopyID, model.CopyAvailable); err != nil {
			return nil, err
		}
	case model.ItemRemoved:
		if err := s.copies.SetStatusTx(ctx, tx, it.CopyID, model.CopyRemoved); err != nil {
			return nil, err
		}
	}
	if err := s.copies.RecalcCountersTx(ctx, tx, it.BookID); err != nil {
		return nil, err
	}
	if next == model.ItemReturned {
		if err := s.copies.RecalcBorrowCountTx(ctx, tx, it.BookID); err != nil {
			return nil, err
		}
	}

	// Once every item of the ticket is RETURNED or REMOVED the ticket
	// auto-advances to RETURNED. A CANCELLED ticket never resurrects:
	// the conditional update excludes terminal states.
	if next == model.ItemReturned || next == model.ItemRemoved {
		notDone, err := s.items.CountNotDoneTx(ctx, tx, it.TicketID)
		if err != nil {
			return nil, err
		}
		if notDone == 0 {
			if _, err := s.tickets.ReturnIfAllDoneTx(ctx, tx, it.TicketID, s.now()); err != nil {
				return nil, err
			}
		}
	}

	it.Status = next
	it.ReturnedAt = returnedAt
	it.ReturnedBy = returnedBy
	return it, nil
}
