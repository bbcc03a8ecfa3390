package book

import "time"

type CreateBookReq struct {
	Title      string     `json:"title" validate:"required"`
	CoverURL   *string    `json:"cover_url" validate:"omitempty,url"`
	Copies     int        `json:"copies" validate:"gte=0,lte=99"`
	AcquiredAt *time.Time `json:"acquired_at"`
}

type AddCopiesReq struct {
	Count int `json:"count" validate:"required,gt=0,lte=99"`
}
