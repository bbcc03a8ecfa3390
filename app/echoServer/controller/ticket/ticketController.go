// app/echoServer/controller/ticket/ticketController.go
package ticket

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/app/echoServer/controller/respond"
	"github.com/longphan04/library-service-BE/model"
	ticketsvc "github.com/longphan04/library-service-BE/service/ticket"
)

type Controller struct {
	Svc ticketsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// Open a borrow ticket
// @Summary      Create borrow ticket
// @Description  Opens a PENDING ticket from one book (direct) or from the member's holds
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateTicketReq  true  "Exactly one of book_id or hold_ids"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any "no copy, or ticket limit reached"
// @Security     BearerAuth
// @Router       /v1/tickets [post]
func (h *Controller) Create(c echo.Context) error {
	var req CreateTicketReq
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

	code, err := h.Svc.Create(c.Request().Context(), ticketsvc.CreateInput{
		MemberID: uid,
		BookID:   req.BookID,
		HoldIDs:  req.HoldIDs,
	})
	if err != nil {
		return respond.Error(c, h.Log, "ticket create", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"ticket_code": code,
		"status":      model.TicketPending,
	})
}

// GET /v1/tickets/my
func (h *Controller) MyTickets(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	out, err := h.Svc.List(c.Request().Context(), ticketsvc.ListQuery{
		Status:   c.QueryParam("status"),
		MemberID: uid,
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		return respond.Error(c, h.Log, "ticket list", err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/tickets  (staff)
func (h *Controller) List(c echo.Context) error {
	out, err := h.Svc.List(c.Request().Context(), ticketsvc.ListQuery{
		Status:   c.QueryParam("status"),
		NameLike: c.QueryParam("name"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	})
	if err != nil {
		return respond.Error(c, h.Log, "ticket list", err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /v1/tickets/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)
	role, _ := c.Get("role").(string)

	out, err := h.Svc.Detail(c.Request().Context(), id, uid, role == model.RoleStaff)
	if err != nil {
		return respond.Error(c, h.Log, "ticket detail", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// PATCH /v1/tickets/:id/status  (staff)
func (h *Controller) StaffUpdate(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req StaffUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error"})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.StaffUpdate(c.Request().Context(), id, uid, model.TicketStatus(req.Status))
	if err != nil {
		return respond.Error(c, h.Log, "ticket staff update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

// PATCH /v1/tickets/my/:id
func (h *Controller) MemberUpdate(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req MemberUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error"})
	}
	uid, _ := c.Get("user_id").(int64)

	var out *model.BorrowTicket
	switch req.Action {
	case "cancel":
		out, err = h.Svc.MemberCancel(c.Request().Context(), id, uid)
	case "renew":
		out, err = h.Svc.MemberRenew(c.Request().Context(), id, uid)
	}
	if err != nil {
		return respond.Error(c, h.Log, "ticket member update", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": out})
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}
