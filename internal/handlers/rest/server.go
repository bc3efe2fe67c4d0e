package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KirkDiggler/gatherer/internal/services/gathering"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config holds the dependencies of the HTTP server
type Config struct {
	Addr             string
	GatheringService gathering.Service
}

// Server is the HTTP boundary for managing gatherings
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer creates a server with all routes registered
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.GatheringService == nil {
		return nil, errors.New("gathering service cannot be nil")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	Setup(e, NewGatheringController(cfg.GatheringService))

	return &Server{echo: e, addr: cfg.Addr}, nil
}

// Setup registers the gathering routes
func Setup(e *echo.Echo, ctrl *GatheringController) {
	e.POST("/gathering", ctrl.Create)
	e.GET("/gatherings/:venueId", ctrl.List)
	e.GET("/gathering/:id/results", ctrl.Results)
	e.DELETE("/gathering/:id", ctrl.Delete)
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	return nil
}
