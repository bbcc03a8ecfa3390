// Package inventory owns the physical copy set of each book and the
// cached per-book counters derived from it.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/jmoiron/sqlx"

	copyrepo "github.com/longphan04/library-service-BE/repository/copy"

	"github.com/longphan04/library-service-BE/model"
	"github.com/longphan04/library-service-BE/util/apperr"
	"github.com/longphan04/library-service-BE/util/codegen"
)

const (
	maxCopiesPerBook = 99
	barcodeRetries   = 5
)

type Service interface {
	ListCopies(ctx context.Context, bookID int64) ([]model.BookCopy, error)
	GetCopy(ctx context.Context, copyID int64) (*model.BookCopy, error)

	// CreateCopy adds one copy. An empty barcode means "generate one".
	CreateCopy(ctx context.Context, in CreateCopyInput) (*model.BookCopy, error)

	// AddCopies appends qty auto-labeled copies, continuing the note
	// numbering from the highest existing index.
	AddCopies(ctx context.Context, bookID int64, title string, qty int) ([]model.BookCopy, error)

	// SetCopyStatus is the staff-facing status override; it validates the
	// target status and recomputes the book's counters.
	SetCopyStatus(ctx context.Context, copyID int64, status model.CopyStatus) (*model.BookCopy, error)

	// DeleteCopy removes a copy from the inventory. Copies in active use
	// (BORROWED or HELD) cannot be deleted.
	DeleteCopy(ctx context.Context, copyID int64) error

	// BulkCreateTx creates qty fresh copies inside the caller's
	// transaction, numbering notes from 1. Used by book creation.
	BulkCreateTx(ctx context.Context, tx *sqlx.Tx, bookID int64, title string, qty int, acquiredAt *time.Time) ([]model.BookCopy, error)
}

type CreateCopyInput struct {
	BookID     int64
	Barcode    string
	Note       *string
	AcquiredAt *time.Time
}

type service struct {
	copies copyrepo.Repo
}

func New(copies copyrepo.Repo) Service { return &service{copies: copies} }

func (s *service) ListCopies(ctx context.Context, bookID int64) ([]model.BookCopy, error) {
	return s.copies.ListByBook(ctx, bookID)
}

func (s *service) GetCopy(ctx context.Context, copyID int64) (*model.BookCopy, error) {
	c, err := s.copies.GetByID(ctx, copyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "book copy not found")
	}
	return c, err
}

func (s *service) CreateCopy(ctx context.Context, in CreateCopyInput) (*model.BookCopy, error) {
	if in.BookID <= 0 {
		return nil, apperr.New(apperr.BadInput, "book_id is required")
	}

	var created *model.BookCopy
	err := s.copies.WithTx(ctx, func(tx *sqlx.Tx) error {
		barcode := in.Barcode
		if barcode == "" {
			var err error
			if barcode, err = s.uniqueBarcode(ctx, tx); err != nil {
				return err
			}
		} else {
			exists, err := s.copies.BarcodeExistsTx(ctx, tx, barcode)
			if err != nil {
				return err
			}
			if exists {
				return apperr.New(apperr.Conflict, "barcode already in use")
			}
		}

		c := &model.BookCopy{
			BookID:     in.BookID,
			Barcode:    barcode,
			Status:     model.CopyAvailable,
			Note:       in.Note,
			AcquiredAt: in.AcquiredAt,
		}
		if err := s.copies.InsertTx(ctx, tx, c); err != nil {
			return err
		}
		created = c
		return s.copies.RecalcCountersTx(ctx, tx, in.BookID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) AddCopies(ctx context.Context, bookID int64, title string, qty int) ([]model.BookCopy, error) {
	if bookID <= 0 {
		return nil, apperr.New(apperr.BadInput, "book_id is required")
	}
	if qty <= 0 || qty > maxCopiesPerBook {
		return nil, apperr.New(apperr.BadInput, "quantity out of range")
	}

	prefix := notePrefix(title)
	var created []model.BookCopy
	err := s.copies.WithTx(ctx, func(tx *sqlx.Tx) error {
		total, err := s.copies.CountByBookTx(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if total+int64(qty) > maxCopiesPerBook {
			return apperr.Newf(apperr.BadInput, "a book can have at most %d copies", maxCopiesPerBook)
		}

		last, err := s.copies.LastNoteIndexTx(ctx, tx, bookID, prefix)
		if err != nil {
			return err
		}

		created, err = s.insertCopies(ctx, tx, bookID, prefix, last+1, qty, nil)
		if err != nil {
			return err
		}
		return s.copies.RecalcCountersTx(ctx, tx, bookID)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) SetCopyStatus(ctx context.Context, copyID int64, status model.CopyStatus) (*model.BookCopy, error) {
	if !model.ValidCopyStatus(status) {
		return nil, apperr.Newf(apperr.BadInput, "unknown copy status %q", status)
	}

	var out *model.BookCopy
	err := s.copies.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.copies.GetForUpdateTx(ctx, tx, copyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.New(apperr.NotFound, "book copy not found")
			}
			return err
		}
		if err := s.copies.SetStatusTx(ctx, tx, copyID, status); err != nil {
			return err
		}
		c.Status = status
		out = c
		return s.copies.RecalcCountersTx(ctx, tx, c.BookID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) DeleteCopy(ctx context.Context, copyID int64) error {
	return s.copies.WithTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.copies.GetForUpdateTx(ctx, tx, copyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.New(apperr.NotFound, "book copy not found")
			}
			return err
		}
		if c.Status == model.CopyBorrowed || c.Status == model.CopyHeld {
			return apperr.New(apperr.InvalidState, "copy is borrowed or held, cannot delete")
		}
		if err := s.copies.DeleteTx(ctx, tx, copyID); err != nil {
			return err
		}
		return s.copies.RecalcCountersTx(ctx, tx, c.BookID)
	})
}

func (s *service) BulkCreateTx(ctx context.Context, tx *sqlx.Tx, bookID int64, title string, qty int, acquiredAt *time.Time) ([]model.BookCopy, error) {
	if qty < 0 || qty > maxCopiesPerBook {
		return nil, apperr.New(apperr.BadInput, "quantity out of range")
	}
	if qty == 0 {
		return nil, nil
	}
	created, err := s.insertCopies(ctx, tx, bookID, notePrefix(title), 1, qty, acquiredAt)
	if err != nil {
		return nil, err
	}
	if err := s.copies.RecalcCountersTx(ctx, tx, bookID); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) insertCopies(ctx context.Context, tx *sqlx.Tx, bookID int64, prefix string, startIdx, qty int, acquiredAt *time.Time) ([]model.BookCopy, error) {
	created := make([]model.BookCopy, 0, qty)
	for i := 0; i < qty; i++ {
		idx := startIdx + i
		if idx > maxCopiesPerBook {
			return nil, apperr.Newf(apperr.BadInput, "a book can have at most %d copies", maxCopiesPerBook)
		}
		barcode, err := s.uniqueBarcode(ctx, tx)
		if err != nil {
			return nil, err
		}
		note := fmt.Sprintf("%s-%02d", prefix, idx)
		c := model.BookCopy{
			BookID:     bookID,
			Barcode:    barcode,
			Status:     model.CopyAvailable,
			Note:       &note,
			AcquiredAt: acquiredAt,
		}
		if err := s.copies.InsertTx(ctx, tx, &c); err != nil {
			return nil, err
		}
		created = append(created, c)
	}
	return created, nil
}

// uniqueBarcode generates a label not present in the copy set, retrying
// on collision a bounded number of times. The DB unique constraint is
// the final arbiter.
func (s *service) uniqueBarcode(ctx context.Context, tx *sqlx.Tx) (string, error) {
	for i := 0; i < barcodeRetries; i++ {
		candidate := codegen.Barcode()
		exists, err := s.copies.BarcodeExistsTx(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique barcode after %d tries", barcodeRetries)
}

// notePrefix takes the first title character when it is alphanumeric,
// "X" otherwise. Notes read "C-01", "C-02", ...
func notePrefix(title string) string {
	for _, r := range title {
		if unicode.IsSpace(r) {
			continue
		}
		up := unicode.ToUpper(r)
		if (up >= 'A' && up <= 'Z') || (up >= '0' && up <= '9') {
			return string(up)
		}
		break
	}
	return "X"
}
