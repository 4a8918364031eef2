// Package demoapi provides a small JSON API (login and user management) that
// feature files can run against locally and that the end-to-end tests use as
// their target.
package demoapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/abel-apply/apicheck/internal/store"
)

// Options configures a Server.
type Options struct {
	Secret   string        // HMAC key for access tokens; random when empty
	TokenTTL time.Duration // default 60m
	LogSize  int           // request log capacity; default 1000
	MaxDelay time.Duration // upper bound for /slow; default 10s
	Logger   *zerolog.Logger
}

// Server is the demo API.
type Server struct {
	Router *chi.Mux
	Log    *RequestLog
	Faults *FaultRegistry

	users    *store.Store[User]
	tokens   *TokenIssuer
	maxDelay time.Duration
	logger   zerolog.Logger
}

// New creates a Server seeded with the default users.
func New(opts Options) (*Server, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.LogSize <= 0 {
		opts.LogSize = 1000
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}

	tokens, err := NewTokenIssuer(opts.Secret, opts.TokenTTL)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Router:   chi.NewRouter(),
		Log:      NewRequestLog(opts.LogSize),
		Faults:   NewFaultRegistry(),
		users:    store.New[User](),
		tokens:   tokens,
		maxDelay: opts.MaxDelay,
		logger:   logger,
	}
	s.seed()

	s.Router.Use(chimw.RequestID)
	s.Router.Use(chimw.RealIP)
	s.Router.Use(s.requestLog)
	s.Router.Use(chimw.Recoverer)
	s.routes(s.Router)
	return s, nil
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// Reset restores the seeded users and clears the request log and every
// injected fault.
func (s *Server) Reset() {
	s.users.Reset()
	s.seed()
	s.Log.Clear()
	s.Faults.Reset()
}

// Serve listens on addr and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.maxDelay + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("demo API listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down demo API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response of the form {"message": "..."}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"message": message})
}
