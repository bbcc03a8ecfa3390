// app/echoServer/controller/hold/holdController.go
package hold

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	holdsvc "github.com/longphan04/library-service-BE/service/hold"
)

type Controller struct {
	Svc holdsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// Place a hold
// @Summary      Hold one copy of a book
// @Description  Reserves one available copy for 10 minutes
// @Tags         holds
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateHoldReq  true  "Hold payload"
// @Success      201  {object}  map[string]any
// @Failure      404  {object}  map[string]any "book not found"
// @Failure      409  {object}  map[string]any "no available copy"
// @Security     BearerAuth
// @Router       /v1/holds [post]
func (h *Controller) Create(c echo.Context) error {
	var req CreateHoldReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Create(c.Request().Context(), uid, req.BookID)
	if err != nil {
		return respond.Error(c, h.Log, "hold create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": out})
}

// GET /v1/holds/my
func (h *Controller) MyHolds(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := h.Svc.ListMine(c.Request().Context(), uid)
	if err != nil {
		return respond.Error(c, h.Log, "hold list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// POST /v1/holds/release
func (h *Controller) Release(c echo.Context) error {
	var req ReleaseHoldsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	released, err := h.Svc.Release(c.Request().Context(), uid, req.HoldIDs)
	if err != nil {
		return respond.Error(c, h.Log, "hold release", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}
