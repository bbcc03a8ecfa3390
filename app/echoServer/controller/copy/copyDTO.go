package copy

import "time"

type CreateCopyReq struct {
	BookID     int64      `json:"book_id" validate:"required,gt=0"`
	Barcode    string     `json:"barcode"`
	Note       *string    `json:"note"`
	AcquiredAt *time.Time `json:"acquired_at"`
}

type SetStatusReq struct {
	Status string `json:"status" validate:"required"`
}
