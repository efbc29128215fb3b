// Package api serves collections and reports over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/FranksOps/rival/internal/model"
)

// Collector runs one collection.
type Collector interface {
	Collect(ctx context.Context, req model.CollectionRequest) (*model.CollectionResult, error)
}

// Assembler turns a collection into a report.
type Assembler interface {
	Assemble(ctx context.Context, res *model.CollectionResult) *model.Report
}

// Config configures a Server.
type Config struct {
	// CORSOrigins are the browser origins allowed to call the API.
	CORSOrigins []string
	// RequestTimeout bounds a whole request (default 5m).
	RequestTimeout time.Duration
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server holds the router and its dependencies.
type Server struct {
	Router    chi.Router
	collector Collector
	assembler Assembler
	logger    *slog.Logger
}

// NewServer creates a chi router with all routes configured.
func NewServer(cfg Config, collector Collector, assembler Assembler) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		Router:    r,
		collector: collector,
		assembler: assembler,
		logger:    cfg.Logger,
	}

	r.Get("/health", s.health)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))
		r.Post("/search", s.search)
		r.Post("/collect", s.collect)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}
