// app/echoServer/controller/item/itemController.go
package item

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	"github.com/longphan04/library-service-BE/model"
	itemsvc "github.com/longphan04/library-service-BE/service/item"
)

type Controller struct {
	Svc itemsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

type UpdateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// PATCH /v1/items/:id/status  (staff)
func (h *Controller) UpdateStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req UpdateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error"})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.UpdateStatus(c.Request().Context(), id, &uid, model.ItemStatus(req.Status))
	if err != nil {
		return respond.Error(c, h.Log, "item update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// GET /v1/tickets/:id/items  (staff)
func (h *Controller) ListByTicket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	rows, err := h.Svc.ListByTicket(c.Request().Context(), id)
	if err != nil {
		return respond.Error(c, h.Log, "item list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
