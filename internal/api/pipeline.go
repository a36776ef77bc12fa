package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) classifyThread(c echo.Context) error {
	res, err := s.classifier.ClassifyThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) classifyBacklog(c echo.Context) error {
	res, err := s.classifier.ClassifyBacklog(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) scoreThread(c echo.Context) error {
	breakdown, err := s.scorer.ScoreThread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, breakdown)
}

func (s *Server) scoreHistory(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.store.GetThread(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	entries, err := s.store.ListScoreHistory(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type draftRequest struct {
	Instruction string `json:"instruction,omitempty"`
}

func (s *Server) generateDrafts(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	entry, err := s.drafter.GenerateDrafts(c.Request().Context(), c.Param("id"), req.Instruction)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) draftHistory(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.store.GetThread(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	entries, err := s.store.ListDraftHistory(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type markUsedRequest struct {
	VariantIndex *int `json:"variant_index"`
}

func (s *Server) markDraftUsed(c echo.Context) error {
	var req markUsedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.VariantIndex == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "variant_index is required"})
	}
	if err := s.drafter.MarkVariantUsed(c.Request().Context(), c.Param("entryId"), *req.VariantIndex); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
