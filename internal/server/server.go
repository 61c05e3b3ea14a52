// Package server exposes test selection over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/huangsam/pts/core"
	"github.com/huangsam/pts/internal/contract"
	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/internal/telemetry"
)

const (
	readHeaderTimeout = 10 * time.Second
	requestTimeout    = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Options carries the collaborators of a Server.
type Options struct {
	Model          *core.LogisticModel // nil serves random scores
	Sink           *telemetry.Sink
	Fetcher        core.ChangeFetcher // optional, enriches a commit with provider data
	Version        string
	AllowedOrigins []string
}

// Server is a thin wrapper over chi and the stdlib http.Server.
type Server struct {
	cfg  *contract.Config
	mgr  contract.CacheManager
	opts Options
	mux  *chi.Mux
	srv  *http.Server
}

// New builds the router and the http server without starting it.
func New(cfg *contract.Config, mgr contract.CacheManager, opts Options) *Server {
	if opts.Sink == nil {
		opts.Sink = telemetry.NewSink()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{cfg: cfg, mgr: mgr, opts: opts}

	m := chi.NewRouter()
	m.Use(chimw.RealIP)
	m.Use(requestID)
	m.Use(accessLog)
	m.Use(recoverJSON)
	m.Use(chimw.Timeout(requestTimeout))
	m.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	m.Get("/health", s.handleHealth)
	m.Method(http.MethodGet, "/metrics", opts.Sink.Handler())
	m.Route("/api/v1", func(r chi.Router) {
		r.Post("/predict", s.handlePredict)
	})

	s.mux = m
	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           m,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the listening address.
func (s *Server) Addr() string { return s.srv.Addr }

// Run starts the server and blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Str("model_status", s.modelStatus()).Msg("http listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("http shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) modelStatus() string {
	if s.opts.Model != nil && s.opts.Model.Fitted() {
		return "loaded"
	}
	return "untrained"
}
