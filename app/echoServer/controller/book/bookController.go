// app/echoServer/controller/book/bookController.go
package book

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	booksvc "github.com/longphan04/library-service-BE/service/book"
	"github.com/longphan04/library-service-BE/service/inventory"
)

type Controller struct {
	Svc booksvc.Service
	Inv inventory.Service
	V   *validator.Validate
	Log *slog.Logger
}

// GET /v1/books
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		return respond.Error(c, h.Log, "book list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/books/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	b, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		return respond.Error(c, h.Log, "book detail", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": b})
}

// POST /v1/books  (staff)
func (h *Controller) Create(c echo.Context) error {
	var req CreateBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	b, err := h.Svc.Create(c.Request().Context(), req.Title, req.CoverURL, req.Copies, req.AcquiredAt)
	if err != nil {
		return respond.Error(c, h.Log, "book create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": b})
}

// POST /v1/books/:id/copies  (staff)
func (h *Controller) AddCopies(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req AddCopiesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}

	b, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		return respond.Error(c, h.Log, "add copies", err)
	}
	copies, err := h.Inv.AddCopies(c.Request().Context(), b.ID, b.Title, req.Count)
	if err != nil {
		return respond.Error(c, h.Log, "add copies", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": copies})
}
