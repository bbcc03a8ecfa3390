// model/book.go
package model

import "time"

type Book struct {
	ID               int64     `json:"book_id" db:"book_id"`
	Title            string    `json:"title" db:"title"`
	CoverURL         *string   `json:"cover_url,omitempty" db:"cover_url"`
	TotalCopies      int64     `json:"total_copies" db:"total_copies"`
	AvailableCopies  int64     `json:"available_copies" db:"available_copies"`
	TotalBorrowCount int64     `json:"total_borrow_count" db:"total_borrow_count"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyHeld      CopyStatus = "HELD"
	CopyBorrowed  CopyStatus = "BORROWED"
	CopyRemoved   CopyStatus = "REMOVED"
)

// ValidCopyStatus reports whether s is one of the four copy states.
func ValidCopyStatus(s CopyStatus) bool {
	switch s {
	case CopyAvailable, CopyHeld, CopyBorrowed, CopyRemoved:
		return true
	}
	return false
}

type BookCopy struct {
	ID         int64      `json:"copy_id" db:"copy_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	Barcode    string     `json:"barcode" db:"barcode"`
	Status     CopyStatus `json:"status" db:"status"`
	Note       *string    `json:"note,omitempty" db:"note"`
	AcquiredAt *time.Time `json:"acquired_at,omitempty" db:"acquired_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
