// model/ticket.go
package model

import "time"

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketApproved  TicketStatus = "APPROVED"
	TicketPickedUp  TicketStatus = "PICKED_UP"
	TicketReturned  TicketStatus = "RETURNED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// ValidTicketStatus reports whether s is a known ticket state.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketPending, TicketApproved, TicketPickedUp, TicketReturned, TicketCancelled:
		return true
	}
	return false
}

// TicketTerminal reports whether s is RETURNED or CANCELLED. Terminal
// tickets are immutable.
func TicketTerminal(s TicketStatus) bool {
	return s == TicketReturned || s == TicketCancelled
}

type BorrowTicket struct {
	ID              int64        `json:"ticket_id" db:"ticket_id"`
	Code            string       `json:"ticket_code" db:"ticket_code"`
	MemberID        int64        `json:"member_id" db:"member_id"`
	Status          TicketStatus `json:"status" db:"status"`
	RequestedAt     time.Time    `json:"requested_at" db:"requested_at"`
	ApprovedAt      *time.Time   `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy      *int64       `json:"approved_by,omitempty" db:"approved_by"`
	PickupExpiresAt *time.Time   `json:"pickup_expires_at,omitempty" db:"pickup_expires_at"`
	PickedUpAt      *time.Time   `json:"picked_up_at,omitempty" db:"picked_up_at"`
	PickedUpBy      *int64       `json:"picked_up_by,omitempty" db:"picked_up_by"`
	DueDate         *time.Time   `json:"due_date,omitempty" db:"due_date"`
	ReturnedAt      *time.Time   `json:"returned_at,omitempty" db:"returned_at"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	RenewCount      int          `json:"renew_count" db:"renew_count"`
	OverdueNotified bool         `json:"-" db:"overdue_notified"`
}

type ItemStatus string

const (
	ItemBorrowed  ItemStatus = "BORROWED"
	ItemReturned  ItemStatus = "RETURNED"
	ItemRemoved   ItemStatus = "REMOVED"
	ItemCancelled ItemStatus = "CANCELLED"
)

// ValidItemStatus reports whether s is a known borrow-item state.
func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemBorrowed, ItemReturned, ItemRemoved, ItemCancelled:
		return true
	}
	return false
}

// BorrowItem pins one copy inside a ticket. book_id is denormalized for
// reporting queries.
type BorrowItem struct {
	ID         int64      `json:"borrow_item_id" db:"borrow_item_id"`
	TicketID   int64      `json:"ticket_id" db:"ticket_id"`
	CopyID     int64      `json:"copy_id" db:"copy_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	Status     ItemStatus `json:"status" db:"status"`
	ReturnedAt *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	ReturnedBy *int64     `json:"returned_by,omitempty" db:"returned_by"`
}
