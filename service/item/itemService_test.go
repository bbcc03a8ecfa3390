// service/item/item_service_test.go
package item

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/longphan04/library-service-BE/model"
	itemrepo "github.com/longphan04/library-service-BE/repository/item"
	ticketrepo "github.com/longphan04/library-service-BE/repository/ticket"
	"github.com/longphan04/library-service-BE/util/apperr"
)

type itemRepoMock struct {
	getForUpdateFn    func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error)
	listNotInStatusFn func(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error)
	updateStatusFn    func(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error
	countNotDoneFn    func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error)
}

var _ itemrepo.Repo = (*itemRepoMock)(nil)

func (m *itemRepoMock) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}
func (m *itemRepoMock) BulkInsertTx(ctx context.Context, tx *sqlx.Tx, items []model.BorrowItem) error {
	return nil
}
func (m *itemRepoMock) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
	if m.getForUpdateFn == nil {
		return nil, sql.ErrNoRows
	}
	return m.getForUpdateFn(ctx, tx, itemID)
}
func (m *itemRepoMock) ListNotInStatusTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error) {
	if m.listNotInStatusFn == nil {
		return nil, nil
	}
	return m.listNotInStatusFn(ctx, tx, ticketID, target)
}
func (m *itemRepoMock) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error {
	if m.updateStatusFn == nil {
		return nil
	}
	return m.updateStatusFn(ctx, tx, itemID, status, returnedAt, returnedBy)
}
func (m *itemRepoMock) CountNotDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error) {
	if m.countNotDoneFn == nil {
		return 1, nil
	}
	return m.countNotDoneFn(ctx, tx, ticketID)
}
func (m *itemRepoMock) ListByTicket(ctx context.Context, ticketID int64) ([]itemrepo.DetailRow, error) {
	return nil, nil
}

type ticketRepoMock struct {
	getForUpdateFn    func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error)
	returnIfAllDoneFn func(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error)
}

var _ ticketrepo.Repo = (*ticketRepoMock)(nil)

func (m *ticketRepoMock) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}
func (m *ticketRepoMock) InsertTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error {
	return nil
}
func (m *ticketRepoMock) RecentStatuses(ctx context.Context, memberID int64, limit int) ([]model.TicketStatus, error) {
	return nil, nil
}
func (m *ticketRepoMock) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
	if m.getForUpdateFn == nil {
		return nil, sql.ErrNoRows
	}
	return m.getForUpdateFn(ctx, tx, ticketID)
}
func (m *ticketRepoMock) GetOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64) (*model.BorrowTicket, error) {
	return nil, sql.ErrNoRows
}
func (m *ticketRepoMock) GetOwned(ctx context.Context, ticketID, memberID int64) (*model.BorrowTicket, error) {
	return nil, sql.ErrNoRows
}
func (m *ticketRepoMock) UpdateTransitionTx(ctx context.Context, tx *sqlx.Tx, t *model.BorrowTicket) error {
	return nil
}
func (m *ticketRepoMock) CancelPendingOwnedTx(ctx context.Context, tx *sqlx.Tx, ticketID, memberID int64, now time.Time) (int64, error) {
	return 0, nil
}
func (m *ticketRepoMock) RenewConditional(ctx context.Context, ticketID, memberID int64, newDue, now time.Time) (int64, error) {
	return 0, nil
}
func (m *ticketRepoMock) ReturnIfAllDoneTx(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error) {
	if m.returnIfAllDoneFn == nil {
		return 0, nil
	}
	return m.returnIfAllDoneFn(ctx, tx, ticketID, now)
}
func (m *ticketRepoMock) ListExpiredPickup(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	return nil, nil
}
func (m *ticketRepoMock) CancelExpiredPickupTx(ctx context.Context, tx *sqlx.Tx, ticketIDs []int64, now time.Time) ([]int64, error) {
	return nil, nil
}
func (m *ticketRepoMock) ListOverdueUnnotified(ctx context.Context, now time.Time, limit int) ([]model.BorrowTicket, error) {
	return nil, nil
}
func (m *ticketRepoMock) MarkOverdueNotified(ctx context.Context, ticketIDs []int64) error {
	return nil
}
func (m *ticketRepoMock) List(ctx context.Context, f ticketrepo.ListFilter) ([]ticketrepo.ListRow, int64, error) {
	return nil, 0, nil
}
func (m *ticketRepoMock) GetDetail(ctx context.Context, ticketID int64) (*ticketrepo.ListRow, error) {
	return nil, sql.ErrNoRows
}

type copyRepoMock struct {
	setStatusFn        func(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error
	recalcCountersFn   func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
	recalcBorrowFn     func(ctx context.Context, tx *sqlx.Tx, bookID int64) error
}

func (m *copyRepoMock) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}
func (m *copyRepoMock) GetByID(ctx context.Context, copyID int64) (*model.BookCopy, error) {
	return nil, nil
}
func (m *copyRepoMock) ListByBook(ctx context.Context, bookID int64) ([]model.BookCopy, error) {
	return nil, nil
}
func (m *copyRepoMock) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyID int64) (*model.BookCopy, error) {
	return nil, nil
}
func (m *copyRepoMock) InsertTx(ctx context.Context, tx *sqlx.Tx, c *model.BookCopy) error {
	return nil
}
func (m *copyRepoMock) DeleteTx(ctx context.Context, tx *sqlx.Tx, copyID int64) error { return nil }
func (m *copyRepoMock) SetStatusTx(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error {
	if m.setStatusFn == nil {
		return nil
	}
	return m.setStatusFn(ctx, tx, copyID, status)
}
func (m *copyRepoMock) PickAvailableTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.BookCopy, error) {
	return nil, sql.ErrNoRows
}
func (m *copyRepoMock) LockByIDsTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error) {
	return nil, nil
}
func (m *copyRepoMock) FilterHeldForUpdateTx(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) ([]model.BookCopy, error) {
	return nil, nil
}
func (m *copyRepoMock) CountByBookTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (int64, error) {
	return 0, nil
}
func (m *copyRepoMock) BarcodeExistsTx(ctx context.Context, tx *sqlx.Tx, barcode string) (bool, error) {
	return false, nil
}
func (m *copyRepoMock) LastNoteIndexTx(ctx context.Context, tx *sqlx.Tx, bookID int64, prefix string) (int, error) {
	return 0, nil
}
func (m *copyRepoMock) RecalcCountersTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	if m.recalcCountersFn == nil {
		return nil
	}
	return m.recalcCountersFn(ctx, tx, bookID)
}
func (m *copyRepoMock) RecalcBorrowCountTx(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
	if m.recalcBorrowFn == nil {
		return nil
	}
	return m.recalcBorrowFn(ctx, tx, bookID)
}

var testNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func staffID(id int64) *int64 { return &id }

func borrowedItem() *model.BorrowItem {
	return &model.BorrowItem{ID: 1, TicketID: 10, CopyID: 31, BookID: 7, Status: model.ItemBorrowed}
}

func pickedUpTicket() *model.BorrowTicket {
	return &model.BorrowTicket{ID: 10, Status: model.TicketPickedUp}
}

func newTestService(ir *itemRepoMock, tr *ticketRepoMock, cr *copyRepoMock) Service {
	return New(ir, tr, cr, WithNow(func() time.Time { return testNow }))
}

// --- UpdateStatus ---

func TestUpdateStatus_Return(t *testing.T) {
	var copyStatus model.CopyStatus
	var borrowCountRecalced bool
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
	}
	cr := &copyRepoMock{
		setStatusFn: func(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error {
			copyStatus = status
			return nil
		},
		recalcBorrowFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64) error {
			borrowCountRecalced = true
			return nil
		},
	}
	s := newTestService(ir, tr, cr)

	out, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.NoError(t, err)
	require.Equal(t, model.ItemReturned, out.Status)
	require.Equal(t, testNow, *out.ReturnedAt)
	require.Equal(t, int64(99), *out.ReturnedBy)
	require.Equal(t, model.CopyAvailable, copyStatus)
	require.True(t, borrowCountRecalced)
}

func TestUpdateStatus_Removed(t *testing.T) {
	var copyStatus model.CopyStatus
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
	}
	cr := &copyRepoMock{
		setStatusFn: func(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error {
			copyStatus = status
			return nil
		},
	}
	s := newTestService(ir, tr, cr)

	out, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemRemoved)
	require.NoError(t, err)
	require.Equal(t, model.ItemRemoved, out.Status)
	require.Nil(t, out.ReturnedAt)
	require.Equal(t, model.CopyRemoved, copyStatus)
}

func TestUpdateStatus_SameStateNoOp(t *testing.T) {
	var wrote bool
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			it := borrowedItem()
			it.Status = model.ItemReturned
			return it, nil
		},
		updateStatusFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error {
			wrote = true
			return nil
		},
	}
	s := newTestService(ir, &ticketRepoMock{}, &copyRepoMock{})

	out, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.NoError(t, err)
	require.Equal(t, model.ItemReturned, out.Status)
	require.False(t, wrote)
}

func TestUpdateStatus_TicketMustBePickedUp(t *testing.T) {
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return &model.BorrowTicket{ID: 10, Status: model.TicketApproved}, nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
}

func TestUpdateStatus_TerminalTicketIsReadOnly(t *testing.T) {
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return &model.BorrowTicket{ID: 10, Status: model.TicketCancelled}, nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.Equal(t, apperr.InvalidState, apperr.CodeOf(err))
}

func TestUpdateStatus_OnlyFromBorrowed(t *testing.T) {
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			it := borrowedItem()
			it.Status = model.ItemReturned
			return it, nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemRemoved)
	require.Equal(t, apperr.InvalidTransition, apperr.CodeOf(err))
}

func TestUpdateStatus_NilStaffOnlySystemCancel(t *testing.T) {
	s := newTestService(&itemRepoMock{}, &ticketRepoMock{}, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, nil, model.ItemReturned)
	require.Equal(t, apperr.BadInput, apperr.CodeOf(err))
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	s := newTestService(&itemRepoMock{}, &ticketRepoMock{}, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), "LOST")
	require.Equal(t, apperr.BadInput, apperr.CodeOf(err))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := newTestService(&itemRepoMock{}, &ticketRepoMock{}, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 404, staffID(99), model.ItemReturned)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

// --- auto-advance ---

func TestUpdateStatus_LastItemReturnsTicket(t *testing.T) {
	var advanced bool
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
		countNotDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error) {
			return 0, nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
		returnIfAllDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error) {
			advanced = true
			require.Equal(t, int64(10), ticketID)
			return 1, nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.NoError(t, err)
	require.True(t, advanced)
}

func TestUpdateStatus_RemainingItemsKeepTicketOpen(t *testing.T) {
	var advanced bool
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
		countNotDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error) {
			return 2, nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
		returnIfAllDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error) {
			advanced = true
			return 1, nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.UpdateStatus(context.Background(), 1, staffID(99), model.ItemReturned)
	require.NoError(t, err)
	require.False(t, advanced)
}

// --- SyncWithTicketFinalStatusTx ---

func TestSync_NoOpWhenNotTerminal(t *testing.T) {
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return pickedUpTicket(), nil
		},
	}
	s := newTestService(&itemRepoMock{}, tr, &copyRepoMock{})

	n, err := s.SyncWithTicketFinalStatusTx(context.Background(), nil, 10, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSync_NoOpWhenTicketMissing(t *testing.T) {
	s := newTestService(&itemRepoMock{}, &ticketRepoMock{}, &copyRepoMock{})

	n, err := s.SyncWithTicketFinalStatusTx(context.Background(), nil, 404, nil)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSync_CancelledTicketCancelsItems(t *testing.T) {
	freed := []int64{}
	statuses := map[int64]model.ItemStatus{}
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			it := borrowedItem()
			it.ID = itemID
			it.CopyID = 30 + itemID
			return it, nil
		},
		listNotInStatusFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error) {
			require.Equal(t, model.ItemCancelled, target)
			return []model.BorrowItem{
				{ID: 1, TicketID: 10, CopyID: 31, BookID: 7, Status: model.ItemBorrowed},
				{ID: 2, TicketID: 10, CopyID: 32, BookID: 7, Status: model.ItemBorrowed},
			}, nil
		},
		updateStatusFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64, status model.ItemStatus, returnedAt *time.Time, returnedBy *int64) error {
			statuses[itemID] = status
			return nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return &model.BorrowTicket{ID: 10, Status: model.TicketCancelled}, nil
		},
	}
	cr := &copyRepoMock{
		setStatusFn: func(ctx context.Context, tx *sqlx.Tx, copyID int64, status model.CopyStatus) error {
			require.Equal(t, model.CopyAvailable, status)
			freed = append(freed, copyID)
			return nil
		},
	}
	s := newTestService(ir, tr, cr)

	n, err := s.SyncWithTicketFinalStatusTx(context.Background(), nil, 10, nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, map[int64]model.ItemStatus{1: model.ItemCancelled, 2: model.ItemCancelled}, statuses)
	require.ElementsMatch(t, []int64{31, 32}, freed)
}

func TestSync_CancelledTicketNeverResurrects(t *testing.T) {
	// Cancelling items also brings CountNotDone to zero; the ticket must
	// stay CANCELLED because the conditional return excludes terminal
	// states. The service still calls it only on RETURNED/REMOVED.
	var returnAttempted bool
	ir := &itemRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, itemID int64) (*model.BorrowItem, error) {
			return borrowedItem(), nil
		},
		listNotInStatusFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64, target model.ItemStatus) ([]model.BorrowItem, error) {
			return []model.BorrowItem{{ID: 1, TicketID: 10, CopyID: 31, BookID: 7, Status: model.ItemBorrowed}}, nil
		},
		countNotDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (int64, error) {
			return 0, nil
		},
	}
	tr := &ticketRepoMock{
		getForUpdateFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64) (*model.BorrowTicket, error) {
			return &model.BorrowTicket{ID: 10, Status: model.TicketCancelled}, nil
		},
		returnIfAllDoneFn: func(ctx context.Context, tx *sqlx.Tx, ticketID int64, now time.Time) (int64, error) {
			returnAttempted = true
			return 0, nil
		},
	}
	s := newTestService(ir, tr, &copyRepoMock{})

	_, err := s.SyncWithTicketFinalStatusTx(context.Background(), nil, 10, nil)
	require.NoError(t, err)
	require.False(t, returnAttempted)
}
