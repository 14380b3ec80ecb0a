// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/samber/oops"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	"github.com/yoshisuproject/simpleauth/internal/config"
	"github.com/yoshisuproject/simpleauth/internal/observability"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

// Server is the application HTTP server. Routes registered through Handle
// get the access middleware attached, with their requirement resolved from
// the rule table at registration time.
type Server struct {
	addr       string
	svc        *auth.Service
	rules      *Rules
	cookies    *CookieManager
	loginURL   string
	metrics    *observability.Metrics
	logger     *slog.Logger
	router     *httprouter.Router
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the application server. Denied requests redirect to
// urls.Login; an empty value falls back to /session/new.
func NewServer(
	addr string,
	svc *auth.Service,
	rules *Rules,
	cookies *CookieManager,
	urls config.URLConfig,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("auth service is required")
	}
	if rules == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("rules are required")
	}
	if cookies == nil {
		return nil, oops.Code("WEB_INVALID_DEPENDENCY").Errorf("cookie manager is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loginURL := urls.Login
	if loginURL == "" {
		loginURL = "/session/new"
	}
	return &Server{
		addr:     addr,
		svc:      svc,
		rules:    rules,
		cookies:  cookies,
		loginURL: loginURL,
		metrics:  metrics,
		logger:   logger,
		router:   httprouter.New(),
	}, nil
}

// Handle registers a route with the access middleware attached.
func (s *Server) Handle(method, path string, h httprouter.Handle) {
	requirement := s.rules.Resolve(method, path)
	s.router.Handle(method, path, s.protect(requirement, h))
}

// Router returns the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// protect resumes the session on every request and enforces the resolved
// requirement. Session resume failures are logged and treated as an
// anonymous viewer rather than failing the request.
func (s *Server) protect(requirement Requirement, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := r.Context()

		if token, ok := s.cookies.Read(r); ok {
			session, user, err := s.svc.ResumeSession(ctx, token)
			switch {
			case err != nil:
				errutil.LogError(s.logger, "resuming session failed", err)
			case session != nil:
				ctx = auth.WithIdentity(ctx, auth.Identity{User: user, Session: session})
			}
		}
		r = r.WithContext(ctx)

		if requirement == RequireAuth &&
			!s.rules.IsExcluded(r.URL.Path) &&
			!auth.IsAuthenticated(ctx) {
			s.metrics.RecordAccessDecision("denied")
			http.Redirect(w, r, s.loginURL, http.StatusSeeOther)
			return
		}

		s.metrics.RecordAccessDecision("allowed")
		next(w, r, ps)
	}
}

// RegisterRoutes wires every application endpoint onto the server.
func RegisterRoutes(s *Server, h *Handlers) {
	s.Handle(http.MethodGet, "/", h.Home)

	s.Handle(http.MethodGet, "/session/new", h.ShowLogin)
	s.Handle(http.MethodPost, "/session", h.Login)
	s.Handle(http.MethodGet, "/session/destroy", h.Logout)
	s.Handle(http.MethodDelete, "/session/destroy", h.Logout)

	s.Handle(http.MethodPost, "/passwords", h.RequestReset)
	s.Handle(http.MethodGet, "/passwords/:token", h.PasswordsDispatch)
	s.Handle(http.MethodGet, "/passwords/:token/edit", h.ShowResetForm)
	s.Handle(http.MethodPost, "/passwords/:token", h.CompleteReset)
	s.Handle(http.MethodPatch, "/passwords/:token", h.CompleteReset)

	s.Handle(http.MethodGet, "/posts", h.PostsIndex)
	s.Handle(http.MethodGet, "/posts/:id", h.PostsShow)
}

// DefaultRules returns the rule table the demo routes are registered under:
// everything below /posts needs a session except the index, and the reset
// endpoints are excluded so a logged-out user can always recover.
func DefaultRules(excluded []string) (*Rules, error) {
	rules := NewRules().
		Group("/posts", RequireAuth).
		Endpoint(http.MethodGet, "/posts", AllowAnonymous)
	if err := rules.Exclude(excluded...); err != nil {
		return nil, err
	}
	return rules, nil
}

// Start begins serving on the configured address.
// It returns an error channel that receives any errors from the HTTP server
// after it starts. The channel is closed when the server stops gracefully.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
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
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
