// Package controller contains the controller-specific logic for the HTTP API.
package controller

import (
	"context"
	"net/http"
	"time"

	"hireplane/internal/controller/handlers"
	"hireplane/internal/controller/middleware"
	"hireplane/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	// Addr is the listen address, e.g. ":7171".
	Addr string

	// RateLimit is the per-client request rate (requests per second); 0
	// disables limiting. RateBurst is the token bucket size.
	RateLimit float64
	RateBurst int

	// MetricsHandler serves GET /metrics when non-nil.
	MetricsHandler http.Handler
}

// Server is the HTTP server for the controller API.
type Server struct {
	httpServer *http.Server
}

// New creates a new controller server.
func New(opts Options, runtime handlers.Runtime, s store.Store, pinger handlers.Pinger) *Server {
	h := handlers.New(runtime, s, pinger)
	limit := middleware.RateLimit(opts.RateLimit, opts.RateBurst)

	mux := http.NewServeMux()

	mux.Handle("POST /hires", limit(http.HandlerFunc(h.CreateHire)))
	mux.Handle("GET /hires/{id}", limit(http.HandlerFunc(h.GetHire)))
	mux.Handle("POST /hires/{id}/jobs", limit(http.HandlerFunc(h.AddJob)))
	mux.Handle("POST /hires/{id}/pause", limit(http.HandlerFunc(h.PauseHire)))
	mux.Handle("POST /hires/{id}/resume", limit(http.HandlerFunc(h.ResumeHire)))
	mux.Handle("POST /hires/{id}/cancel", limit(http.HandlerFunc(h.CancelHire)))

	mux.Handle("GET /jobs", limit(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /jobs/{id}", limit(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /jobs/{id}/pause", limit(http.HandlerFunc(h.PauseJob)))
	mux.Handle("POST /jobs/{id}/resume", limit(http.HandlerFunc(h.ResumeJob)))

	// Operational endpoints.
	// These should run behind strict network rules in production.
	mux.HandleFunc("POST /internal/tick", h.InternalTick)
	mux.HandleFunc("POST /internal/recover", h.InternalRecover)

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      middleware.RequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
