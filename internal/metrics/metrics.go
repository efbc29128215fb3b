package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"domain", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rival_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_fetch_bytes_total",
			Help: "Total bytes downloaded across all page fetches",
		},
		[]string{"domain"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_cache_lookups_total",
			Help: "Cache lookups by class and outcome (hit, miss, stale, error)",
		},
		[]string{"class", "outcome"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_cache_writes_total",
			Help: "Cache writes by class and outcome (ok, error)",
		},
		[]string{"class", "outcome"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_cache_evictions_total",
			Help: "Records removed for staleness, by class and trigger (read, sweep)",
		},
		[]string{"class", "trigger"},
	)

	AnalyzerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_analyzer_calls_total",
			Help: "Content analyzer calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	AnalyzerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rival_analyzer_duration_seconds",
			Help:    "Latency of content analyzer calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"operation"},
	)

	SearchHitsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_search_hits_dropped_total",
			Help: "Search hits discarded because they were malformed or their page failed",
		},
		[]string{"reason"},
	)

	CollectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rival_collect_duration_seconds",
			Help:    "End-to-end duration of a collection request",
			Buckets: []float64{0.05, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	CollectedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rival_collected_items_total",
			Help: "Items returned to callers by kind (search, competitor) and provenance source",
		},
		[]string{"kind", "source"},
	)
)

// FetchObservation is what a single page fetch reports.
type FetchObservation struct {
	StatusCode   int
	Failed       bool
	DetectionSrc string
	Duration     time.Duration
	Bytes        int
}

// RecordFetch updates the fetch metrics for domain.
func RecordFetch(domain string, o FetchObservation) {
	detectedStr := strconv.FormatBool(o.DetectionSrc != "")

	statusStr := strconv.Itoa(o.StatusCode)
	if o.Failed {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(domain, statusStr, detectedStr, o.DetectionSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(o.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(o.Bytes))
}

// RecordAnalyzerCall counts one analyzer call and its latency.
func RecordAnalyzerCall(operation string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AnalyzerCalls.WithLabelValues(operation, outcome).Inc()
	AnalyzerDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Handler exposes the default registry, for mounting on an existing router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
