// Package http exposes the reports as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"posreports/internal/log"
	"posreports/internal/middleware/ratelimit"
	"posreports/internal/middleware/security"
	"posreports/internal/middleware/trace"
	"posreports/internal/observability"
	"posreports/internal/services"
)

// Options configures a Server. Zero values are usable.
type Options struct {
	Addr    string
	Logger  *log.Logger
	Metrics *observability.Metrics
	// RefreshRateLimit is the number of refresh requests a client may make per minute.
	RefreshRateLimit int
	// Ready reports whether the service can take traffic. Nil means always ready.
	Ready func(context.Context) error
}

type Server struct {
	http.Server

	reports  *services.ReportService
	detector *security.Detector
	limiter  *ratelimit.Limiter
	metrics  *observability.Metrics
	logger   *log.Logger
	ready    func(context.Context) error

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(reports *services.ReportService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		reports:  reports,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RefreshRateLimit}),
		metrics:  opts.Metrics,
		logger:   logger.WithComponent(log.ComponentHTTP),
		ready:    opts.Ready,
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Remote fetches are bounded separately; leave room for a slow spreadsheet.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(trace.NewMiddleware(s.logger, s.detector.ClientIP, s.metrics).Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/invoices/search", s.handleSearchInvoices)
		r.Get("/invoices/filter", s.handleFilterInvoices)
		r.Get("/sales", s.handleSales)
		r.Get("/dashboard", s.handleDashboard)
		r.With(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit)).
			Post("/refresh", s.handleRefresh)
	})
	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Refresh rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r))
	writeError(w, http.StatusTooManyRequests, "too many refresh requests, try again later")
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
