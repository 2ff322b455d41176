// Package httpapi exposes the REST surface under /api/v1.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/avolkov/taskdeck/internal/logging"
	"github.com/avolkov/taskdeck/internal/server/auth"
	"github.com/avolkov/taskdeck/internal/server/services"
)

// Server wires the auth and oauth services into an http.Server.
type Server struct {
	http   *http.Server
	auth   services.AuthService
	oauth  services.OAuthService
	tokens *auth.Manager
	logger logging.Logger
}

// Options tunes the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

func NewServer(
	authSvc services.AuthService,
	oauthSvc services.OAuthService,
	tokens *auth.Manager,
	logger logging.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		auth:   authSvc,
		oauth:  oauthSvc,
		tokens: tokens,
		logger: logger,
	}

	handler := s.withLogging(withCORS(s.Handler(), opts.AllowedOrigins))
	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Handler builds the route table. Exposed separately so tests can drive the
// mux through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/api/v1/auth/register", post(s.handleRegister))
	mux.HandleFunc("/api/v1/auth/login", post(s.handleLogin))
	mux.Handle("/api/v1/auth/me", s.authMiddleware(get(s.handleMe)))
	mux.Handle("/api/v1/auth/refresh", s.authMiddleware(post(s.handleRefresh)))

	mux.Handle("/api/v1/users/me/password", s.authMiddleware(put(s.handleChangePassword)))

	mux.HandleFunc("/api/v1/oauth/providers", get(s.handleProviders))
	mux.HandleFunc("/api/v1/oauth/authorize", post(s.handleAuthorize))
	mux.HandleFunc("/api/v1/oauth/callback", post(s.handleCallback))
	mux.Handle("/api/v1/oauth/link", s.authMiddleware(post(s.handleLink)))
	mux.Handle("/api/v1/oauth/unlink", s.authMiddleware(post(s.handleUnlink)))

	return mux
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h(w, r)
	}
}

func put(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h(w, r)
	}
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h(w, r)
	}
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "http server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
