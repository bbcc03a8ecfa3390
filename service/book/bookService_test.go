package booksvc

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/longphan04/library-service-BE/model"
	bookrepo "github.com/longphan04/library-service-BE/repository/book"
	"github.com/longphan04/library-service-BE/service/inventory"
	"github.com/longphan04/library-service-BE/util/apperr"
)

type bookRepoMock struct {
	createFn func(ctx context.Context, tx *sqlx.Tx, b *model.Book) error
	getFn    func(ctx context.Context, bookID int64) (*model.Book, error)
	listFn   func(ctx context.Context) ([]model.Book, error)
}

var _ bookrepo.Repo = (*bookRepoMock)(nil)

func (m *bookRepoMock) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}
func (m *bookRepoMock) CreateTx(ctx context.Context, tx *sqlx.Tx, b *model.Book) error {
	if m.createFn == nil {
		b.ID = 7
		return nil
	}
	return m.createFn(ctx, tx, b)
}
func (m *bookRepoMock) Get(ctx context.Context, bookID int64) (*model.Book, error) {
	if m.getFn == nil {
		return nil, sql.ErrNoRows
	}
	return m.getFn(ctx, bookID)
}
func (m *bookRepoMock) GetTx(ctx context.Context, tx *sqlx.Tx, bookID int64) (*model.Book, error) {
	return m.Get(ctx, bookID)
}
func (m *bookRepoMock) List(ctx context.Context) ([]model.Book, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx)
}
func (m *bookRepoMock) AvailableCopies(ctx context.Context, bookID int64) (int64, error) {
	return 0, nil
}

type invMock struct {
	inventory.Service

	bulkCreateFn func(ctx context.Context, tx *sqlx.Tx, bookID int64, title string, qty int, acquiredAt *time.Time) ([]model.BookCopy, error)
}

func (m *invMock) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, bookID int64, title string, qty int, acquiredAt *time.Time) ([]model.BookCopy, error) {
	if m.bulkCreateFn == nil {
		return nil, nil
	}
	return m.bulkCreateFn(ctx, tx, bookID, title, qty, acquiredAt)
}

func TestCreate_SeedsInitialCopies(t *testing.T) {
	var gotBookID int64
	var gotQty int
	inv := &invMock{
		bulkCreateFn: func(ctx context.Context, tx *sqlx.Tx, bookID int64, title string, qty int, acquiredAt *time.Time) ([]model.BookCopy, error) {
			gotBookID = bookID
			gotQty = qty
			out := make([]model.BookCopy, qty)
			for i := range out {
				out[i] = model.BookCopy{ID: int64(i + 1), BookID: bookID, Status: model.CopyAvailable}
			}
			return out, nil
		},
	}
	s := New(&bookRepoMock{}, inv)

	b, err := s.Create(context.Background(), "  Clean Architecture ", nil, 3, nil)
	require.NoError(t, err)
	require.Equal(t, "Clean Architecture", b.Title)
	require.Equal(t, int64(7), gotBookID)
	require.Equal(t, 3, gotQty)
	require.Equal(t, int64(3), b.TotalCopies)
	require.Equal(t, int64(3), b.AvailableCopies)
}

func TestCreate_ZeroCopiesIsFine(t *testing.T) {
	s := New(&bookRepoMock{}, &invMock{})

	b, err := s.Create(context.Background(), "Catalog Only", nil, 0, nil)
	require.NoError(t, err)
	require.Zero(t, b.TotalCopies)
}

func TestCreate_RejectsBlankTitle(t *testing.T) {
	s := New(&bookRepoMock{}, &invMock{})

	_, err := s.Create(context.Background(), "   ", nil, 1, nil)
	require.Equal(t, apperr.BadInput, apperr.CodeOf(err))
}

func TestCreate_RejectsNegativeCopies(t *testing.T) {
	s := New(&bookRepoMock{}, &invMock{})

	_, err := s.Create(context.Background(), "X", nil, -1, nil)
	require.Equal(t, apperr.BadInput, apperr.CodeOf(err))
}

func TestDetail_NotFound(t *testing.T) {
	s := New(&bookRepoMock{}, &invMock{})

	_, err := s.Detail(context.Background(), 404)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}
