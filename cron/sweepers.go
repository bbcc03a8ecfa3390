package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
)

const (
	holdSweepBatch    = 500
	pickupSweepBatch  = 500
	overdueSweepBatch = 100
)

// HoldSweeper releases expired holds in bounded batches.
type HoldSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int64, error)
}

// TicketSweepRepo is the slice of the ticket repository the two
// ticket sweepers need.
type TicketSweepRepo interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
	ListExpiredPickup(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	CancelExpiredPickupTx(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error)
	ListOverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	MarkOverdueNotified(ctx context.Context, ticketIDs []int64) error
}

type ItemSyncer interface {
	SyncWithTicketFinalStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, staffID *int64) (int, error)
}

type Notifier interface {
	MemberCancelled(ctx context.Context, t model.BorrowTicket, reason string)
	MemberOverdue(ctx context.Context, t model.BorrowTicket)
}

// Sweepers holds the three background jobs that expire holds, cancel
// tickets whose pickup window lapsed, and flag overdue loans.
type Sweepers struct {
	holds   HoldSweeper
	tickets TicketSweepRepo
	syncer  ItemSyncer
	notif   Notifier
	log     *slog.Logger
	now     func() time.Time
}

func NewSweepers(holds HoldSweeper, tickets TicketSweepRepo, syncer ItemSyncer, notif Notifier, log *slog.Logger) *Sweepers {
	return &Sweepers{
		holds:   holds,
		tickets: tickets,
		syncer:  syncer,
		notif:   notif,
		log:     log,
		now:     time.Now,
	}
}

// Register adds the three jobs to the scheduler.
func (sw *Sweepers) Register(s *Scheduler) {
	s.Add("expired-holds", sw.SweepHolds)
	s.Add("pickup-expiry", sw.SweepPickupExpiry)
	s.Add("overdue", sw.SweepOverdue)
}

func (sw *Sweepers) SweepHolds(ctx context.Context) error {
	n, err := sw.holds.SweepExpired(ctx, holdSweepBatch)
	if err != nil {
		return err
	}
	if n > 0 {
		sw.log.Info("released expired holds", "count", n)
	}
	return nil
}

// SweepPickupExpiry cancels APPROVED tickets whose pickup window has
// lapsed. Candidates are listed outside the transaction and re-checked
// inside it, so a pickup that races the sweep wins.
func (sw *Sweepers) SweepPickupExpiry(ctx context.Context) error {
	now := sw.now()
	expired, err := sw.tickets.ListExpiredPickup(ctx, now, pickupSweepBatch)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}
	ids := make([]int64, len(expired))
	byID := make(map[int64]model.BorrowTicket, len(expired))
	for i, t := range expired {
		ids[i] = t.ID
		byID[t.ID] = t
	}

	var cancelled []int64
	err = sw.tickets.WithTx(ctx, func(tx *sqlx.Tx) error {
		cancelled, err = sw.tickets.CancelExpiredPickupTx(ctx, tx, ids, now)
		if err != nil {
			return err
		}
		for _, id := range cancelled {
			// nil staff: this is a system cancellation.
			if _, err := sw.syncer.SyncWithTicketFinalStatusTx(ctx, tx, id, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(cancelled) == 0 {
		return nil
	}
	sw.log.Info("cancelled expired pickups", "count", len(cancelled))

	for _, id := range cancelled {
		t := byID[id]
		t.Status = model.TicketCancelled
		t.CancelledAt = &now
		sw.notif.MemberCancelled(ctx, t, "the pickup window expired")
	}
	return nil
}

// SweepOverdue notifies members whose loans passed the due date. The
// flag is written before the notification goes out, so a member is
// nagged at most once even if the notify itself fails.
func (sw *Sweepers) SweepOverdue(ctx context.Context) error {
	now := sw.now()
	overdue, err := sw.tickets.ListOverdueUnnotified(ctx, now, overdueSweepBatch)
	if err != nil {
		return err
	}
	if len(overdue) == 0 {
		return nil
	}
	ids := make([]int64, len(overdue))
	for i, t := range overdue {
		ids[i] = t.ID
	}
	if err := sw.tickets.MarkOverdueNotified(ctx, ids); err != nil {
		return err
	}
	sw.log.Info("flagged overdue tickets", "count", len(overdue))
	for _, t := range overdue {
		sw.notif.MemberOverdue(ctx, t)
	}
	return nil
}
