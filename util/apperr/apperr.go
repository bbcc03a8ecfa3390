// Package apperr carries a machine-readable code on service errors so
// controllers can map them to HTTP statuses without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	BadInput          Code = "BAD_INPUT"
	NotFound          Code = "NOT_FOUND"
	InvalidState      Code = "INVALID_STATE"
	InvalidTransition Code = "INVALID_TRANSITION"
	Conflict          Code = "CONFLICT"
	NoAvailableCopy   Code = "NO_AVAILABLE_COPY"
	TicketLimit       Code = "TICKET_LIMIT"
	ItemLimit         Code = "ITEM_LIMIT"
	RenewNotAllowed   Code = "RENEW_NOT_ALLOWED"
)

type Error struct {
	code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Code() Code    { return e.code }

func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or "" for plain errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ""
}
