// Package http exposes the cached expense store as a JSON API. Handlers
// are deliberately thin: parse, call the store, map errors. Everything
// interesting happens behind the store facade.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	applog "easybudget/internal/log"
	"easybudget/internal/middleware/ratelimit"
	"easybudget/internal/middleware/trace"
	"easybudget/internal/services"
)

type Server struct {
	store   *services.Store
	logger  *applog.Logger
	srv     *http.Server
	trace   *trace.Middleware
	limiter *ratelimit.Limiter
}

func NewServer(port string, store *services.Store, logger *applog.Logger) *Server {
	s := &Server{
		store:   store,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		trace:   trace.NewMiddleware(),
		limiter: ratelimit.NewLimiter(120),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/expenses", s.handleGetExpenses)
	mux.HandleFunc("GET /api/balance", s.handleGetBalance)
	mux.HandleFunc("POST /api/expenses", s.handleRecordExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/recurring", s.handleRecordTemplate)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteTemplate)

	s.srv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.trace.Middleware(s.limiter.Middleware(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	s.limiter.Stop()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"requests": s.trace.GetMetrics().TotalRequests,
	})
}
