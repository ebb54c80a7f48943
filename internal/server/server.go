// Package server exposes scenario routing and the run archive over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chrissnell/pondroute/internal/log"
	"github.com/chrissnell/pondroute/internal/observability"
	"github.com/chrissnell/pondroute/internal/scenario"
	"github.com/chrissnell/pondroute/internal/store"
)

const (
	DefaultListenAddr = "0.0.0.0:8080"
	DefaultRunLimit   = 50
	maxBodyBytes      = 8 << 20
	shutdownTimeout   = 10 * time.Second
)

// Config holds the HTTP server settings
type Config struct {
	ListenAddr string
	// Workers bounds concurrent routing in /api/sweep; < 1 uses GOMAXPROCS
	Workers int
}

// Server serves the routing API. Store and metrics are optional.
type Server struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	cfg      Config
	runner   *scenario.Runner
	store    *store.Store
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
	logger   *zap.SugaredLogger
	handlers *Handlers
	listener net.Listener

	Server http.Server
}

// Option customizes a Server
type Option func(*Server)

// WithStore enables the run archive endpoints and ?save=true
func WithStore(st *store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics records archive metrics and serves g on /metrics
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// New builds a Server. It does not start listening until Start is called.
func New(ctx context.Context, wg *sync.WaitGroup, cfg Config, runner *scenario.Runner, logger *zap.SugaredLogger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.ListenAddr == "" {
		logger.Infof("listen address not provided; defaulting to %s", DefaultListenAddr)
		cfg.ListenAddr = DefaultListenAddr
	}

	s := &Server{
		ctx:    ctx,
		wg:     wg,
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handlers = NewHandlers(s)

	s.Server.Addr = cfg.ListenAddr
	s.Server.Handler = s.Router()
	s.Server.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Start binds the listen address and serves until the context passed to New
// is cancelled. A failure to bind is returned; nothing is started in that case.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Server.Addr, err)
	}
	s.listener = ln
	s.logger.Infof("HTTP server listening on %s", ln.Addr())
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		if err := s.Server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		s.logger.Info("shutting down the HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(ctx); err != nil {
			s.logger.Errorf("HTTP server shutdown: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded, otherwise the
// configured one
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.Server.Addr
}

// Router returns the request router
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(s.logger))

	router.HandleFunc("/healthz", s.handlers.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/route", s.handlers.RouteScenario).Methods(http.MethodPost)
	api.HandleFunc("/sweep", s.handlers.SweepScenarios).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.handlers.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handlers.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handlers.DeleteRun).Methods(http.MethodDelete)

	if s.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
