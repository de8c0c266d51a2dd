// Package server provides HTTP server initialization and lifecycle management
// for the Reverie API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/config"
	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/web/handlers"
)

const (
	// pruneInterval is how often idle rate limiter buckets are dropped.
	pruneInterval = time.Minute

	defaultShutdownTimeout = 5 * time.Second
)

// Deps are the application services the routes are served from.
type Deps struct {
	Asker    handlers.Asker
	Journal  handlers.JournalService
	Profiles storage.ProfileStore
}

// Server owns the HTTP listener and its shutdown.
type Server struct {
	cfg     config.ServerConfig
	limiter *handlers.RateLimiter
	handler http.Handler
	log     zerolog.Logger

	done chan struct{}
	err  error
}

// New builds the router and middleware chain. Nothing listens until Start.
func New(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()
	s := &Server{
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}

	var handler http.Handler = NewRouter(cfg, deps, log)
	if cfg.MaxBodyBytes > 0 {
		handler = handlers.MaxBodyMiddleware(handler, cfg.MaxBodyBytes)
	}
	// A zero rate disables limiting.
	if cfg.RateLimit > 0 {
		s.limiter = handlers.NewRateLimiter(cfg.RateLimit, max(cfg.RateBurst, 1))
		handler = handlers.RateLimitMiddleware(handler, s.limiter)
	}
	handler = handlers.SecurityHeadersMiddleware(handler)
	s.handler = handlers.LoggingMiddleware(handler, log)
	return s
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()
	// The subrouter answers its own misses; the root handlers are not consulted.
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler

	api.Handle("/query", handlers.NewQueryHandler(deps.Asker, log)).Methods(http.MethodPost)
	api.Handle("/query/ws", handlers.NewQuerySocket(deps.Asker, cfg.AllowedOrigins, log)).Methods(http.MethodGet)

	journal := handlers.NewJournalHandlers(deps.Journal, log)
	api.HandleFunc("/journal", journal.CreateEntry).Methods(http.MethodPost)
	api.HandleFunc("/journal", journal.ListEntries).Methods(http.MethodGet)
	api.HandleFunc("/summary", journal.CreateSummary).Methods(http.MethodPost)

	profile := handlers.NewContextHandlers(deps.Profiles, log)
	api.HandleFunc("/context", profile.GetContext).Methods(http.MethodGet)
	api.HandleFunc("/context", profile.PutContext).Methods(http.MethodPut)

	maintenance := handlers.NewMaintenanceHandler(deps.Journal, log)
	api.HandleFunc("/health", maintenance.Health).Methods(http.MethodGet)
	api.HandleFunc("/backfill", maintenance.Backfill).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully within the configured timeout.
// It returns the actual address being listened on (useful for testing
// with port 0). Wait blocks until shutdown has finished.
func (s *Server) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return "", fmt.Errorf("server: listen on %s: %w", s.cfg.Addr(), err)
	}

	// No WriteTimeout: an answer streams for as long as generation runs.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if s.limiter != nil {
		go s.pruneLimiter(ctx)
	}

	go func() {
		select {
		case <-ctx.Done():
		case err, ok := <-serveErr:
			if ok {
				s.log.Error().Err(err).Msg("server stopped unexpectedly")
				s.err = err
				close(s.done)
				return
			}
		}

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			s.log.Error().Err(err).Msg("server shutdown error")
		} else {
			s.log.Info().Msg("server stopped")
		}
		s.err = err
		close(s.done)
	}()

	addr := listener.Addr().String()
	s.log.Info().Str("addr", addr).Msg("server listening")
	return addr, nil
}

// Wait blocks until the server has stopped and returns the shutdown error.
// It may be called more than once.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Prune(); n > 0 {
				s.log.Debug().Int("clients", n).Msg("pruned idle rate limiters")
			}
		}
	}
}
