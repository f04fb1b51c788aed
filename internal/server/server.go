// Package server exposes the scanner control API over HTTP: status, pending
// signals, weight statistics, mode switching and weight reset.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ekaraca/marketscan/internal/domain"
	"github.com/ekaraca/marketscan/internal/server/handler"
	"github.com/ekaraca/marketscan/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port   int
	APIKey string // empty disables authentication
}

// Server is the HTTP API server for the scanner.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// applied. history may be nil.
func New(cfg Config, control handler.Control, history domain.HistoryStore, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	status := handler.NewStatusHandler(control, logger)
	signals := handler.NewSignalHandler(control, logger)
	weightsH := handler.NewWeightsHandler(control, history, logger)
	mode := handler.NewModeHandler(control, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", status.HealthCheck)
	mux.HandleFunc("GET /api/status", status.Status)
	mux.HandleFunc("GET /api/signals/pending", signals.ListPending)
	mux.HandleFunc("GET /api/weights", weightsH.Stats)
	mux.HandleFunc("POST /api/weights/reset", weightsH.Reset)
	mux.HandleFunc("GET /api/mode", mode.Get)
	mux.HandleFunc("POST /api/mode", mode.Set)

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens for HTTP requests until the server errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
