package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/warmline/internal/thread"
)

func (s *Server) listThreads(c echo.Context) error {
	f := thread.ListFilter{
		Status:   thread.Status(c.QueryParam("status")),
		Category: thread.Category(c.QueryParam("category")),
		Search:   c.QueryParam("q"),
	}
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}

	threads, err := s.store.ListThreads(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}

	// Snooze windows are resolved lazily: an elapsed snooze flips the thread
	// back into the active queue at read time.
	now := time.Now()
	for _, t := range threads {
		if t.ResolveSnooze(now) {
			if err := s.store.UpdateThread(c.Request().Context(), t); err != nil {
				log.Warn().Err(err).Str("thread_id", t.ID).Msg("failed to persist snooze expiry")
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"threads": threads,
		"count":   len(threads),
	})
}

func (s *Server) getThread(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	if t.ResolveSnooze(time.Now()) {
		if err := s.store.UpdateThread(ctx, t); err != nil {
			log.Warn().Err(err).Str("thread_id", t.ID).Msg("failed to persist snooze expiry")
		}
	}

	messages, err := s.store.RecentMessages(ctx, t.ID, 0)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"thread":   t,
		"messages": messages,
	})
}

type statusRequest struct {
	Status thread.Status `json:"status"`
}

func (s *Server) updateThreadStatus(c echo.Context) error {
	ctx := c.Request().Context()
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !thread.ValidStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown status"})
	}
	if req.Status == thread.StatusSnoozed {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "use the snooze endpoint, which requires an until time"})
	}

	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if !thread.CanTransition(t.Status, req.Status) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "invalid status transition"})
	}

	t.Status = req.Status
	t.IsSnoozed = false
	t.SnoozeUntil = nil
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

func (s *Server) snoozeThread(c echo.Context) error {
	ctx := c.Request().Context()
	var req snoozeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Until.IsZero() || req.Until.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "snooze time must be in the future"})
	}

	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if err := t.Snooze(req.Until); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) archiveThread(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	t.Archive()
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) reopenThread(c echo.Context) error {
	ctx := c.Request().Context()
	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if err := t.Reopen(); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

type classificationOverride struct {
	Category thread.Category `json:"category"`
	Note     string          `json:"note,omitempty"`
}

// overrideClassification records a human correction. The thread is pinned
// afterwards: automated classification never overwrites a manual verdict, and
// the correction becomes few-shot steering for future runs.
func (s *Server) overrideClassification(c echo.Context) error {
	ctx := c.Request().Context()
	var req classificationOverride
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !thread.ValidCategory(req.Category) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown category"})
	}

	t, err := s.store.GetThread(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	now := time.Now()
	t.Category = req.Category
	t.ClassifiedAt = &now
	t.ManualClassification = true
	t.ClassificationNote = req.Note
	if err := s.store.UpdateThread(ctx, t); err != nil {
		return writeError(c, err)
	}

	log.Info().Str("thread_id", t.ID).Str("category", string(req.Category)).Msg("classification overridden")
	return c.JSON(http.StatusOK, t)
}
