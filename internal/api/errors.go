package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/warmline/internal/action"
	"github.com/warmline/internal/engine"
	"github.com/warmline/internal/thread"
)

// writeError maps domain errors onto HTTP status codes. Invalid input is the
// caller's fault (400), a missing record is 404, an out-of-order action
// transition is 409, and an engine upstream failure is 502.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, thread.ErrInvalidID):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, thread.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, action.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrUpstream):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
