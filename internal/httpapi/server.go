package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ca-srg/leakscope/internal/record"
	"github.com/ca-srg/leakscope/internal/types"
)

const (
	healthPath  = "/healthz"
	metricsPath = "/metrics"
	mcpPath     = "/mcp"

	defaultShutdownTimeout = 10 * time.Second
)

// Searcher runs leak searches. *search.Engine satisfies it.
type Searcher interface {
	SearchText(ctx context.Context, text string, opts record.Options) (*record.ResultSet, error)
	Sources() []string
}

// HealthChecker pings every configured source. *source.Registry satisfies it.
type HealthChecker interface {
	Check(ctx context.Context) map[string]error
}

// Options wires the router.
type Options struct {
	Searcher       Searcher
	Health         HealthChecker
	MCP            http.Handler
	APIKeys        []string
	AllowedIPs     []string
	TrustedProxies []string
	Logger         *zap.Logger
}

// handler holds the per-router dependencies of the API endpoints.
type handler struct {
	searcher Searcher
	health   HealthChecker
	validate *validator.Validate
	logger   *zap.Logger
}

// NewRouter builds the HTTP API: search, export, sources, health, Prometheus
// metrics, and the MCP streamable endpoint when opts.MCP is set.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Searcher == nil {
		return nil, errors.New("httpapi: searcher is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	h := &handler{
		searcher: opts.Searcher,
		health:   opts.Health,
		validate: validator.New(),
		logger:   log,
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(log))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(log))
	if len(opts.AllowedIPs) > 0 {
		allowlist, err := NewIPAllowlist(opts.AllowedIPs, opts.TrustedProxies, log)
		if err != nil {
			return nil, err
		}
		r.Use(allowlist.Middleware)
	}
	r.Use(bearerAuthMiddleware(opts.APIKeys))
	r.Use(metricsMiddleware())

	r.Get(healthPath, h.handleHealth)
	r.Handle(metricsPath, promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/search", h.handleSearch)
		r.Post("/export", h.handleExport)
		r.Get("/sources", h.handleSources)
	})

	if opts.MCP != nil {
		r.Handle(mcpPath, opts.MCP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	return r, nil
}

// Server runs the API until its context is canceled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(cfg *types.Config, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.HTTPShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.HTTPHost, fmt.Sprint(cfg.HTTPPort)),
			Handler:           handler,
			ReadTimeout:       cfg.HTTPReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.HTTPWriteTimeout,
		},
		shutdownTimeout: timeout,
		logger:          logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run listens until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
