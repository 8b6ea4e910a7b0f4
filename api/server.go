// Package api exposes the chat service over HTTP: one chat endpoint, the
// session CRUD surface, and liveness probes, all speaking JSON.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devsharma/sakhi/internal/session"
)

// Server timeouts. Write allows for a full pipeline turn; the others guard
// against slow-loris clients.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 90 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// ServerConfig contains configuration for creating the HTTP server.
type ServerConfig struct {
	Responder Responder          // Required
	Screener  Screener           // Required
	Sessions  session.Repository // Required
	Pool      *pgxpool.Pool      // Optional: nil disables pool stats in /ready
	Logger    *slog.Logger
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Responder == nil:
		return nil, errors.New("responder is required")
	case cfg.Screener == nil:
		return nil, errors.New("screener is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session repository is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		responder: cfg.Responder,
		screener:  cfg.Screener,
		sessions:  cfg.Sessions,
		logger:    logger,
	}
	sh := &sessionHandler{store: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/sessions", sh.list)
	mux.HandleFunc("POST /api/sessions", sh.create)
	mux.HandleFunc("GET /api/sessions/{id}", sh.get)
	mux.HandleFunc("PATCH /api/sessions/{id}", sh.rename)
	mux.HandleFunc("DELETE /api/sessions/{id}", sh.delete)

	// Recovery outermost so a logging panic is also caught
	var handler http.Handler = mux
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(err, <-errCh)
	}
	return <-errCh
}
