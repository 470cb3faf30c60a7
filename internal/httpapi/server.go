// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

// Package httpapi exposes the authentication subsystem over HTTP at
// /api/auth. This is the exact surface the rest of the application
// depends on.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/techiekraft/identity/internal/auth"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "tk_session"

// AuthService is the authentication surface the HTTP API consumes.
// *auth.Service satisfies it.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Identity, error)
	Register(ctx context.Context, input auth.NewUser) (*auth.Identity, error)
	StartSession(ctx context.Context, identity *auth.Identity) (string, error)
	ResolveSession(ctx context.Context, token string) (*auth.Identity, error)
	DestroySession(ctx context.Context, token string) error
	SessionTTL() time.Duration
}

// MetricsRecorder receives login and registration outcomes. Optional.
type MetricsRecorder interface {
	RecordLogin(status string)
	RecordRegistration(status string)
}

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address in "host:port" form.
	Addr string

	// CookieName for the session cookie. Defaults to DefaultCookieName.
	CookieName string

	// CookieSecure sets the Secure flag on the session cookie. Enable in
	// production behind TLS.
	CookieSecure bool
}

// Server serves the authentication HTTP API.
type Server struct {
	addr         string
	cookieName   string
	cookieSecure bool
	auth         AuthService
	metrics      MetricsRecorder
	logger       *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server. metrics may be nil.
func NewServer(cfg Config, authService AuthService, metrics MetricsRecorder, logger *slog.Logger) (*Server, error) {
	if authService == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	return &Server{
		addr:         cfg.Addr,
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
		auth:         authService,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Router builds the chi router for the API surface. Exposed separately from
// Start so tests can drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(s.withSession)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
		r.With(RequireIdentity).Get("/profile", s.handleProfile)
	})

	return r
}

// Start begins serving the API. It returns an error channel that receives
// any serve failure; the channel is closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		// Use local httpSrv to avoid race with subsequent Start() calls
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}

	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
