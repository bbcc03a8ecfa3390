package hold

type CreateHoldReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type ReleaseHoldsReq struct {
	HoldIDs []int64 `json:"hold_ids" validate:"required,min=1,dive,gt=0"`
}
