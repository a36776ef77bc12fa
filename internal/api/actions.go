package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/warmline/internal/action"
	"github.com/warmline/internal/thread"
)

func (s *Server) createAction(c echo.Context) error {
	var req action.CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	a, err := s.gateway.Create(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (s *Server) listActions(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	actions, err := s.gateway.List(c.Request().Context(), thread.ActionStatus(c.QueryParam("status")), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"actions": actions,
		"count":   len(actions),
	})
}

type approvalRequest struct {
	ApprovalID string `json:"approval_id,omitempty"`
}

func (s *Server) approveAction(c echo.Context) error {
	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	a, err := s.gateway.Approve(c.Request().Context(), c.Param("id"), req.ApprovalID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) rejectAction(c echo.Context) error {
	var req approvalRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	a, err := s.gateway.Reject(c.Request().Context(), c.Param("id"), req.ApprovalID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (s *Server) executeAction(c echo.Context) error {
	a, err := s.gateway.Execute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
