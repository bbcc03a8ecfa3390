// app/echoServer/controller/copy/copyController.go
package copy

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	"github.com/longphan04/library-service-BE/model"
	"github.com/longphan04/library-service-BE/service/inventory"
)

type Controller struct {
	Svc inventory.Service
	V   *validator.Validate
	Log *slog.Logger
}

// GET /v1/books/:id/copies  (staff)
func (h *Controller) ListByBook(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	rows, err := h.Svc.ListCopies(c.Request().Context(), id)
	if err != nil {
		return respond.Error(c, h.Log, "copy list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/copies  (staff)
func (h *Controller) Create(c echo.Context) error {
	var req CreateCopyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	cp, err := h.Svc.CreateCopy(c.Request().Context(), inventory.CreateCopyInput{
		BookID:     req.BookID,
		Barcode:    req.Barcode,
		Note:       req.Note,
		AcquiredAt: req.AcquiredAt,
	})
	if err != nil {
		return respond.Error(c, h.Log, "copy create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": cp})
}

// PATCH /v1/copies/:id/status  (staff)
func (h *Controller) SetStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req SetStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error"})
	}
	cp, err := h.Svc.SetCopyStatus(c.Request().Context(), id, model.CopyStatus(req.Status))
	if err != nil {
		return respond.Error(c, h.Log, "copy set status", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": cp})
}

// DELETE /v1/copies/:id  (staff)
func (h *Controller) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	if err := h.Svc.DeleteCopy(c.Request().Context(), id); err != nil {
		return respond.Error(c, h.Log, "copy delete", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
