// Package httpapi provides an optional, loopback-only HTTP+SSE surface over
// the Agent Turn Engine, for embedding scenarios where a consumer prefers to
// talk over localhost instead of linking this module directly (e.g. a
// desktop shell's IPC layer). It is off unless explicitly started: only the
// `serve` subcommand starts it, and it carries no authentication or
// multi-tenant surface, so it is deliberately unsuited to anything beyond a
// single trusted local embedder.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codeturn-ai/opencode/internal/event"
	"github.com/codeturn-ai/opencode/internal/session"
	"github.com/codeturn-ai/opencode/internal/statesync"
)

// Config holds httpapi server configuration.
type Config struct {
	// Addr is the listen address. Callers should bind to loopback only
	// (e.g. "127.0.0.1:0" to let the OS pick a free port); the server does
	// not enforce this itself.
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default httpapi server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "127.0.0.1:0",
		EnableCORS:   false,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no write timeout: SSE connections stay open
	}
}

// Server is the optional headless HTTP surface over a session.Service.
type Server struct {
	config  Config
	router  *chi.Mux
	httpSrv *http.Server
	service *session.Service
	bus     *event.Bus

	syncWorker *statesync.Worker
	syncDir    string
	syncCancel context.CancelFunc
}

// New creates a Server bound to the given session Service. Pass nil for bus
// to fall back to the package-level default event bus.
func New(cfg Config, svc *session.Service, bus *event.Bus) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:  cfg,
		router:  r,
		service: svc,
		bus:     bus,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// SetStateSync attaches a state-sync worker backed by the session data
// under sessionDir. Once set, GET /session/sync streams its listings over
// SSE and Start/Shutdown manage the worker's background scan loop
// alongside the HTTP listener.
func (s *Server) SetStateSync(w *statesync.Worker, sessionDir string) {
	s.syncWorker = w
	s.syncDir = sessionDir
}

// Start starts the HTTP server. It blocks until the server stops; call it
// from its own goroutine.
func (s *Server) Start() error {
	if s.syncWorker != nil {
		var syncCtx context.Context
		syncCtx, s.syncCancel = context.WithCancel(context.Background())
		go s.syncWorker.Run(syncCtx, s.syncDir)
	}

	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.syncCancel != nil {
		s.syncCancel()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the Chi router, chiefly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
