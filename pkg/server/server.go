// Package server is the HTTP surface: investigation submission (plain
// and SSE streaming), thin wrappers over retrieval and the network
// tools, health and cache administration, and prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovokpus/investigator/pkg/cache"
	"github.com/ovokpus/investigator/pkg/config"
	"github.com/ovokpus/investigator/pkg/orchestrator"
	"github.com/ovokpus/investigator/pkg/search"
	"github.com/ovokpus/investigator/pkg/tools"
)

// Deps wires the server to the rest of the service. Cache and Search
// may be nil; the associated endpoints then report unavailability.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Search       *search.Store
	Cache        cache.Store
	Registry     *tools.ToolRegistry

	// LLMReady reports whether the gateway has credentials, for /health.
	LLMReady func() bool

	Logger *slog.Logger
}

type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	router chi.Router
	http   *http.Server
	logger *slog.Logger
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.router,

		// Streaming responses stay open for the whole investigation, so
		// no WriteTimeout; read headers are bounded.
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Post("/investigate", s.handleInvestigate)
	r.Post("/investigate/stream", s.handleInvestigateStream)

	r.Get("/search", s.handleSearch)
	r.Get("/web-search", s.toolHandler("search_web_intelligence", webSearchArgs))
	r.Get("/arxiv-search", s.toolHandler("search_fraud_research", arxivSearchArgs))
	r.Get("/exchange-rate", s.toolHandler("get_exchange_rate_data", exchangeRateArgs))

	r.Get("/health", s.handleHealth)

	r.Get("/cache/stats", s.handleCacheStats)
	r.Delete("/cache/clear", s.handleCacheClear)
	r.Delete("/cache/clear/{category}", s.handleCacheClear)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// ListenAndServe blocks until the listener fails or ctx is cancelled,
// then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds())
		})
	}
}
