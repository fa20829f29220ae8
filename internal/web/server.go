// Package web serves the data grid over HTTP: a JSON API for the grid
// operations, a server-sent event stream of grid state, and an HTML page.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/gridconsole/internal/config"
	"github.com/JonMunkholm/gridconsole/internal/grid"
	"github.com/JonMunkholm/gridconsole/internal/store"
	"github.com/JonMunkholm/gridconsole/internal/web/middleware"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Registry *grid.Registry
	Client   store.Client
	Config   *config.Config

	// Optional.
	Metrics  *grid.Metrics
	Gatherer prometheus.Gatherer
	Audit    grid.AuditRecorder
}

// Server is the HTTP server for the grid console.
type Server struct {
	deps     Deps
	cfg      *config.Config
	sessions *sessionStore
	router   *chi.Mux
	server   *http.Server

	limiter   *middleware.RateLimiter
	mutations *middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = defaultConfig()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.sessions = newSessionStore(s.newController, cfg.Grid.SessionIdleTimeout)
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func defaultConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Grid: config.GridConfig{
			DeleteConfirmTTL:   grid.DefaultConfirmTTL,
			SessionIdleTimeout: 30 * time.Minute,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

// newController builds the Controller for one browser session.
func (s *Server) newController() *grid.Controller {
	opts := []grid.Option{
		grid.WithMetrics(s.deps.Metrics),
		grid.WithConfirmTTL(s.cfg.Grid.DeleteConfirmTTL),
	}
	if s.deps.Audit != nil {
		opts = append(opts, grid.WithAuditRecorder(s.deps.Audit))
	}
	return grid.NewController(s.deps.Registry, s.deps.Client, opts...)
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.RequestsPerMinute)
		s.mutations = middleware.NewRateLimiter(s.cfg.Rate.MutationLimit, s.cfg.Rate.MutationLimit)
		s.router.Use(s.limiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.router.With(s.withSession).Get("/", s.handlePage)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)

		r.Route("/grid", func(r chi.Router) {
			r.Use(s.withSession)

			// The event stream outlives the request timeout.
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
				if s.mutations != nil {
					r.Use(middleware.Mutations(s.mutations.Handler))
				}

				r.Get("/state", s.handleState)
				r.Post("/table", s.handleSelectTable)
				r.Post("/refresh", s.handleRefresh)

				// Inline cell editing
				r.Post("/edit", s.handleStartEdit)
				r.Post("/edit/confirm", s.handleConfirmEdit)
				r.Post("/edit/cancel", s.handleCancelEdit)
				r.Post("/cells", s.handleCommitCell)

				// Row forms
				r.Post("/rows", s.handleCreateRow)
				r.Put("/rows/{identity}", s.handleUpdateRow)

				// Delete gate
				r.Post("/rows/{identity}/delete", s.handleRequestDelete)
				r.Post("/delete/confirm", s.handleConfirmDelete)
				r.Post("/delete/cancel", s.handleCancelDelete)
			})
		})
	})
}

// Run starts background jobs (session sweeping, limiter cleanup) that stop
// when ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.sessions.sweepEvery(ctx, time.Minute)
	if s.limiter != nil {
		go s.limiter.Cleanup(ctx, time.Minute)
		go s.mutations.Cleanup(ctx, time.Minute)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, then waits for every session's
// in-flight grid write to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	return errors.Join(err, s.sessions.closeAll(ctx))
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				// The grid page carries its script and styles inline.
				h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
