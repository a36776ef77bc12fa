// Package api is the HTTP surface consumed by the UI layer. It maps the
// core's error taxonomy onto status codes: caller faults are 400/404,
// upstream engine failures are 502.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/warmline/internal/action"
	"github.com/warmline/internal/classify"
	"github.com/warmline/internal/draft"
	"github.com/warmline/internal/score"
	"github.com/warmline/internal/thread"
)

// Server represents the API server.
type Server struct {
	echo *echo.Echo
	port int

	store      thread.Store
	classifier *classify.Classifier
	scorer     *score.Scorer
	drafter    *draft.Drafter
	gateway    *action.Gateway
}

// NewServer creates a new API server wired to the orchestrators.
func NewServer(port int, store thread.Store, classifier *classify.Classifier, scorer *score.Scorer, drafter *draft.Drafter, gateway *action.Gateway) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:       e,
		port:       port,
		store:      store,
		classifier: classifier,
		scorer:     scorer,
		drafter:    drafter,
		gateway:    gateway,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	v1 := s.echo.Group("/api/v1")

	v1.GET("/threads", s.listThreads)
	v1.GET("/threads/:id", s.getThread)
	v1.PUT("/threads/:id/status", s.updateThreadStatus)
	v1.POST("/threads/:id/snooze", s.snoozeThread)
	v1.POST("/threads/:id/archive", s.archiveThread)
	v1.POST("/threads/:id/reopen", s.reopenThread)
	v1.PUT("/threads/:id/classification", s.overrideClassification)

	v1.POST("/threads/:id/classify", s.classifyThread)
	v1.POST("/classify", s.classifyBacklog)
	v1.POST("/threads/:id/score", s.scoreThread)
	v1.GET("/threads/:id/score-history", s.scoreHistory)
	v1.POST("/threads/:id/drafts", s.generateDrafts)
	v1.GET("/threads/:id/drafts", s.draftHistory)
	v1.PUT("/drafts/:entryId/used", s.markDraftUsed)

	v1.POST("/actions", s.createAction)
	v1.GET("/actions", s.listActions)
	v1.POST("/actions/:id/approve", s.approveAction)
	v1.POST("/actions/:id/reject", s.rejectAction)
	v1.POST("/actions/:id/execute", s.executeAction)
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
