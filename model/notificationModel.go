// model/notification.go
package model

import "time"

type NotificationType string

const (
	NotifBorrowCreated  NotificationType = "BORROW_CREATED"
	NotifBorrowApproved NotificationType = "BORROW_APPROVED"
	NotifBorrowPickedUp NotificationType = "BORROW_PICKED_UP"
	NotifBorrowReturned NotificationType = "BORROW_RETURNED"
	NotifBorrowCancel   NotificationType = "BORROW_CANCELLED"
	NotifBorrowOverdue  NotificationType = "BORROW_OVERDUE"
)

type Notification struct {
	ID          int64            `json:"notification_id" db:"notification_id"`
	UserID      int64            `json:"user_id" db:"user_id"`
	Type        NotificationType `json:"type" db:"type"`
	Title       string           `json:"title" db:"title"`
	Content     string           `json:"content" db:"content"`
	ReferenceID *int64           `json:"reference_id,omitempty" db:"reference_id"`
	IsRead      bool             `json:"is_read" db:"is_read"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}
