// model/hold.go
package model

import "time"

// BookHold is a short-lived claim by one member on one AVAILABLE copy.
// copy_id carries a unique constraint: at most one active hold per copy.
type BookHold struct {
	ID        int64     `json:"hold_id" db:"hold_id"`
	MemberID  int64     `json:"member_id" db:"member_id"`
	CopyID    int64     `json:"copy_id" db:"copy_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
