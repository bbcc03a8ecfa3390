package ticket

type CreateTicketReq struct {
	BookID  int64   `json:"book_id" validate:"omitempty,gt=0"`
	HoldIDs []int64 `json:"hold_ids" validate:"omitempty,min=1,dive,gt=0"`
}

type StaffUpdateReq struct {
	Status string `json:"status" validate:"required"`
}

// MemberUpdateReq carries the member's own ticket actions.
type MemberUpdateReq struct {
	Action string `json:"action" validate:"required,oneof=cancel renew"`
}
