// Package server exposes the settlement core over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/winverse2755/settlekit/internal/domain"
	"github.com/winverse2755/settlekit/internal/server/handler"
	"github.com/winverse2755/settlekit/internal/server/middleware"
	"github.com/winverse2755/settlekit/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting even when a limiter is wired.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Policy     *handler.PolicyHandler
	Settlement *handler.SettlementHandler
	Pools      *handler.PoolHandler
	History    *handler.HistoryHandler
}

// Server is the headless HTTP + WebSocket API for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, rate limit, auth) applied. metricsHandler
// and wsHub may be nil to disable those endpoints; limiter may be nil to
// disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, metricsHandler http.Handler, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/policy", handlers.Policy.GetPolicy)
	mux.HandleFunc("PUT /api/policy", handlers.Policy.UpdatePolicy)

	mux.HandleFunc("POST /api/simulate", handlers.Settlement.Simulate)
	mux.HandleFunc("POST /api/settle", handlers.Settlement.Settle)
	mux.HandleFunc("POST /api/settle/auto", handlers.Settlement.SettleAuto)

	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("GET /api/pools/{id}", handlers.Pools.GetPool)

	mux.HandleFunc("GET /api/history", handlers.History.ListHistory)
	mux.HandleFunc("DELETE /api/history", handlers.History.ClearHistory)

	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // settle runs can sit in the retry loop
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
