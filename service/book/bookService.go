package booksvc

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/model"
	bookrepo "github.com/longphan04/library-service-BE/repository/book"
	"github.com/longphan04/library-service-BE/service/inventory"
	"github.com/longphan04/library-service-BE/util/apperr"
)

type Service interface {
	// Create registers a book and its initial copies in one transaction.
	Create(ctx context.Context, title string, coverURL *string, copies int, acquiredAt *time.Time) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Detail(ctx context.Context, bookID int64) (*model.Book, error)
}

type service struct {
	books bookrepo.Repo
	inv   inventory.Service
}

func New(books bookrepo.Repo, inv inventory.Service) Service {
	return &service{books: books, inv: inv}
}

func (s *service) Create(ctx context.Context, title string, coverURL *string, copies int, acquiredAt *time.Time) (*model.Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.BadInput, "title is required")
	}
	if copies < 0 {
		return nil, apperr.New(apperr.BadInput, "copies must not be negative")
	}

	b := &model.Book{Title: title, CoverURL: coverURL}
	err := s.books.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.books.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		created, err := s.inv.BulkCreateTx(ctx, tx, b.ID, title, copies, acquiredAt)
		if err != nil {
			return err
		}
		b.TotalCopies = int64(len(created))
		b.AvailableCopies = int64(len(created))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) List(ctx context.Context) ([]model.Book, error) {
	return s.books.List(ctx)
}

func (s *service) Detail(ctx context.Context, bookID int64) (*model.Book, error) {
	b, err := s.books.Get(ctx, bookID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "book not found")
	}
	return b, err
}
