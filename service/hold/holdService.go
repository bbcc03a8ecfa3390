// Package hold implements the short-lived reservation of one AVAILABLE
// copy per request. A hold is ACTIVE until it is released, consumed into
// a borrow ticket, or swept after its 10-minute window.
package hold

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/longphan04/library-service-BE/config"
	"github.com/longphan04/library-service-BE/model"
	bookrepo "github.com/longphan04/library-service-BE/repository/book"
	copyrepo "github.com/longphan04/library-service-BE/repository/copy"
	holdrepo "github.com/longphan04/library-service-BE/repository/hold"
	"github.com/longphan04/library-service-BE/util/apperr"
)

const (
	defaultSweepLimit = 200
	maxSweepLimit     = 1000
)

type Service interface {
	// Create reserves one AVAILABLE copy of the book for the member.
	Create(ctx context.Context, memberID, bookID int64) (*model.BookHold, error)

	ListMine(ctx context.Context, memberID int64) ([]holdrepo.MyHoldRow, error)

	// Release deletes the member's holds among holdIDs, silently
	// skipping ids that are not theirs, and frees the copies still HELD.
	// Returns the count actually deleted.
	Release(ctx context.Context, memberID int64, holdIDs []int64) (int64, error)

	// SweepExpired reclaims up to limit holds past expiry, soonest first.
	// Re-entrant: a second run with no new expirations is a no-op.
	SweepExpired(ctx context.Context, limit int) (int64, error)
}

type service struct {
	holds  holdrepo.Repo
	copies copyrepo.Repo
	books  bookrepo.Repo
	now    func() time.Time
}

type Option func(*service)

// WithNow overrides the clock, for tests.
func WithNow(fn func() time.Time) Option {
	return func(s *service) { s.now = fn }
}

func New(holds holdrepo.Repo, copies copyrepo.Repo, books bookrepo.Repo, opts ...Option) Service {
	s := &service{holds: holds, copies: copies, books: books, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, memberID, bookID int64) (*model.BookHold, error) {
	if memberID <= 0 || bookID <= 0 {
		return nil, apperr.New(apperr.BadInput, "member_id and book_id are required")
	}

	// Cheap pre-check against the cached counter before touching copy
	// rows. The transactional pick below is authoritative.
	available, err := s.books.AvailableCopies(ctx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "book not found")
		}
		return nil, err
	}
	if available <= 0 {
		return nil, apperr.New(apperr.NoAvailableCopy, "no available copy for this book")
	}

	var hold *model.BookHold
	err = s.holds.WithTx(ctx, func(tx *sqlx.Tx) error {
		copy, err := s.copies.PickAvailableTx(ctx, tx, bookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Counter was stale or we lost every row lock.
				return apperr.New(apperr.NoAvailableCopy, "no available copy for this book")
			}
			return err
		}

		h := &model.BookHold{
			MemberID:  memberID,
			CopyID:    copy.ID,
			ExpiresAt: s.now().Add(config.HoldExpireWindow),
		}
		if err := s.holds.InsertTx(ctx, tx, h); err != nil {
			if isUniqueViolation(err) {
				// Defense in depth: the unique copy_id constraint caught
				// a race the row lock should have prevented.
				return apperr.New(apperr.Conflict, "copy is already held")
			}
			return err
		}

		if err := s.copies.SetStatusTx(ctx, tx, copy.ID, model.CopyHeld); err != nil {
			return err
		}
		if err := s.copies.RecalcCountersTx(ctx, tx, copy.BookID); err != nil {
			return err
		}
		hold = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *service) ListMine(ctx context.Context, memberID int64) ([]holdrepo.MyHoldRow, error) {
	return s.holds.ListByMember(ctx, memberID)
}

func (s *service) Release(ctx context.Context, memberID int64, holdIDs []int64) (int64, error) {
	if len(holdIDs) == 0 {
		return 0, apperr.New(apperr.BadInput, "hold_ids is required")
	}

	var deleted int64
	err := s.holds.WithTx(ctx, func(tx *sqlx.Tx) error {
		copyIDs, err := s.holds.DeleteOwnedTx(ctx, tx, memberID, holdIDs)
		if err != nil {
			return err
		}
		deleted = int64(len(copyIDs))
		if deleted == 0 {
			return nil
		}
		return s.freeHeldCopies(ctx, tx, copyIDs)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *service) SweepExpired(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if limit > maxSweepLimit {
		limit = maxSweepLimit
	}

	var swept int64
	err := s.holds.WithTx(ctx, func(tx *sqlx.Tx) error {
		copyIDs, err := s.holds.DeleteExpiredTx(ctx, tx, s.now(), limit)
		if err != nil {
			return err
		}
		swept = int64(len(copyIDs))
		if swept == 0 {
			return nil
		}
		return s.freeHeldCopies(ctx, tx, copyIDs)
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

// freeHeldCopies reverts to AVAILABLE only the copies still HELD; a copy
// that moved on to BORROWED in the meantime is left alone.
func (s *service) freeHeldCopies(ctx context.Context, tx *sqlx.Tx, copyIDs []int64) error {
	held, err := s.copies.FilterHeldForUpdateTx(ctx, tx, copyIDs)
	if err != nil {
		return err
	}
	books := make(map[int64]struct{}, len(held))
	for _, c := range held {
		if err := s.copies.SetStatusTx(ctx, tx, c.ID, model.CopyAvailable); err != nil {
			return err
		}
		books[c.BookID] = struct{}{}
	}
	for bookID := range books {
		if err := s.copies.RecalcCountersTx(ctx, tx, bookID); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
