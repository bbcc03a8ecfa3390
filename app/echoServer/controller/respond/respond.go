// Package respond maps service errors onto HTTP responses so the
// controllers share one status table instead of repeating switches.
package respond

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/longphan04/library-service-BE/util/apperr"
)

func status(code apperr.Code) int {
	switch code {
	case apperr.BadInput, apperr.ItemLimit:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidState, apperr.InvalidTransition, apperr.Conflict,
		apperr.NoAvailableCopy, apperr.TicketLimit, apperr.RenewNotAllowed:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Error writes the error as JSON. Coded errors keep their message and
// code; anything uncoded is logged and collapsed to a plain 500.
func Error(c echo.Context, log *slog.Logger, op string, err error) error {
	code := apperr.CodeOf(err)
	if code == "" {
		if log != nil {
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			log.Error(op, "err", err, "req_id", rid, "path", c.Path())
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(status(code), echo.Map{
		"message": err.Error(),
		"code":    string(code),
	})
}
