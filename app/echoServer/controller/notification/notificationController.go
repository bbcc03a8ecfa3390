// app/echoServer/controller/notification/notificationController.go
package notification

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	notifsvc "github.com/longphan04/library-service-BE/service/notification"
)

type Controller struct {
	Svc notifsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

type MarkReadReq struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// GET /v1/notifications
func (h *Controller) ListMine(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	out, err := h.Svc.ListMine(c.Request().Context(), uid, page, limit)
	if err != nil {
		return respond.Error(c, h.Log, "notification list", err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /v1/notifications/read
func (h *Controller) MarkRead(c echo.Context) error {
	var req MarkReadReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error"})
	}
	uid, _ := c.Get("user_id").(int64)

	n, err := h.Svc.MarkRead(c.Request().Context(), uid, req.IDs)
	if err != nil {
		return respond.Error(c, h.Log, "notification read", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
