package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/longphan04/library-service-BE/model"
)

var (
	_ HoldSweeper     = (*holdSweeperMock)(nil)
	_ TicketSweepRepo = (*ticketRepoMock)(nil)
	_ ItemSyncer      = (*syncerMock)(nil)
	_ Notifier        = (*notifierMock)(nil)
)

type holdSweeperMock struct {
	sweepFn func(ctx context.Context, limit int) (int64, error)
}

func (m *holdSweeperMock) SweepExpired(ctx context.Context, limit int) (int64, error) {
	if m.sweepFn == nil {
		return 0, nil
	}
	return m.sweepFn(ctx, limit)
}

type ticketRepoMock struct {
	listExpiredFn   func(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	cancelExpiredFn func(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error)
	listOverdueFn   func(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error)
	markNotifiedFn  func(ctx context.Context, ticketIDs []int64) error
}

func (m *ticketRepoMock) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}
func (m *ticketRepoMock) ListExpiredPickup(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	if m.listExpiredFn == nil {
		return nil, nil
	}
	return m.listExpiredFn(ctx, now, limit)
}
func (m *ticketRepoMock) CancelExpiredPickupTx(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error) {
	if m.cancelExpiredFn == nil {
		return nil, nil
	}
	return m.cancelExpiredFn(ctx, tx, ticketIDs, now)
}
func (m *ticketRepoMock) ListOverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	if m.listOverdueFn == nil {
		return nil, nil
	}
	return m.listOverdueFn(ctx, now, limit)
}
func (m *ticketRepoMock) MarkOverdueNotified(ctx context.Context, ticketIDs []int64) error {
	if m.markNotifiedFn == nil {
		return nil
	}
	return m.markNotifiedFn(ctx, ticketIDs)
}

type syncerMock struct {
	synced []int64
}

func (m *syncerMock) SyncWithTicketFinalStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, staffID *int64) (int, error) {
	m.synced = append(m.synced, ticketID)
	return 1, nil
}

type notifierMock struct {
	cancelled []int64
	overdue   []int64
}

func (m *notifierMock) MemberCancelled(ctx context.Context, t model.BorrowTicket, reason string) {
	m.cancelled = append(m.cancelled, t.ID)
}
func (m *notifierMock) MemberOverdue(ctx context.Context, t model.BorrowTicket) {
	m.overdue = append(m.overdue, t.ID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepHolds_PassesBatchLimit(t *testing.T) {
	var gotLimit int
	holds := &holdSweeperMock{
		sweepFn: func(ctx context.Context, limit int) (int64, error) {
			gotLimit = limit
			return 3, nil
		},
	}
	sw := NewSweepers(holds, &ticketRepoMock{}, &syncerMock{}, &notifierMock{}, testLogger())

	require.NoError(t, sw.SweepHolds(context.Background()))
	require.Equal(t, holdSweepBatch, gotLimit)
}

func TestSweepPickupExpiry(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tickets := &ticketRepoMock{
		listExpiredFn: func(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
			require.Equal(t, pickupSweepBatch, limit)
			return []model.BorrowTicket{
				{ID: 10, MemberID: 3, Status: model.TicketApproved, PickupExpiresAt: &expiry},
				{ID: 11, MemberID: 4, Status: model.TicketApproved, PickupExpiresAt: &expiry},
			}, nil
		},
		cancelExpiredFn: func(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error) {
			require.ElementsMatch(t, []int64{10, 11}, ticketIDs)
			// Ticket 11 was picked up between the list and the lock.
			return []int64{10}, nil
		},
	}
	sy := &syncerMock{}
	no := &notifierMock{}
	sw := NewSweepers(&holdSweeperMock{}, tickets, sy, no, testLogger())

	require.NoError(t, sw.SweepPickupExpiry(context.Background()))
	require.Equal(t, []int64{10}, sy.synced)
	require.Equal(t, []int64{10}, no.cancelled)
}

func TestSweepPickupExpiry_NothingExpired(t *testing.T) {
	sy := &syncerMock{}
	sw := NewSweepers(&holdSweeperMock{}, &ticketRepoMock{}, sy, &notifierMock{}, testLogger())

	require.NoError(t, sw.SweepPickupExpiry(context.Background()))
	require.Empty(t, sy.synced)
}

func TestSweepOverdue_MarksBeforeNotify(t *testing.T) {
	due := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	var marked []int64
	no := &notifierMock{}
	tickets := &ticketRepoMock{
		listOverdueFn: func(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
			require.Equal(t, overdueSweepBatch, limit)
			return []model.BorrowTicket{
				{ID: 20, MemberID: 3, Status: model.TicketPickedUp, DueDate: &due},
				{ID: 21, MemberID: 4, Status: model.TicketPickedUp, DueDate: &due},
			}, nil
		},
		markNotifiedFn: func(ctx context.Context, ticketIDs []int64) error {
			// The flag must land before any notification goes out.
			require.Empty(t, no.overdue)
			marked = ticketIDs
			return nil
		},
	}
	sw := NewSweepers(&holdSweeperMock{}, tickets, &syncerMock{}, no, testLogger())

	require.NoError(t, sw.SweepOverdue(context.Background()))
	require.Equal(t, []int64{20, 21}, marked)
	require.Equal(t, []int64{20, 21}, no.overdue)
}

func TestSweepOverdue_MarkFailureSkipsNotify(t *testing.T) {
	due := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	no := &notifierMock{}
	tickets := &ticketRepoMock{
		listOverdueFn: func(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
			return []model.BorrowTicket{{ID: 20, Status: model.TicketPickedUp, DueDate: &due}}, nil
		},
		markNotifiedFn: func(ctx context.Context, ticketIDs []int64) error {
			return errors.New("deadlock detected")
		},
	}
	sw := NewSweepers(&holdSweeperMock{}, tickets, &syncerMock{}, no, testLogger())

	require.Error(t, sw.SweepOverdue(context.Background()))
	require.Empty(t, no.overdue)
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	s := NewScheduler(testLogger(), time.Hour)
	s.Add("probe", func(ctx context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, runs)
}

func TestScheduler_SwallowsJobErrors(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	s := NewScheduler(testLogger(), 20*time.Millisecond)
	s.Add("flaky", func(ctx context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return errors.New("boom")
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}
