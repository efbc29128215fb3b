package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/rival/internal/bypass"
	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/fingerprint"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/pkg/httpclient"
	"github.com/FranksOps/rival/pkg/proxy"
	"github.com/FranksOps/rival/pkg/ratelimit"
	"github.com/FranksOps/rival/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// DefaultMaxBodyBytes caps how much of a page is read.
const DefaultMaxBodyBytes = 5 << 20

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	Detector     *bypass.Detector
	Logger       *slog.Logger
	// InsecureSkipVerify is for tests against self-signed servers.
	InsecureSkipVerify bool
}

// Response is the raw outcome of one GET.
type Response struct {
	ID         string
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	FetchedAt  time.Time
	// BlockedBy names the bot-protection vendor that challenged the request.
	BlockedBy string
}

// Fetcher performs single URL fetches with a browser TLS fingerprint,
// rotating user agents and proxies.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher builds a Fetcher. A single client is held for its lifetime, so
// a cookie jar, if configured, persists across fetches.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.RoundRobin)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detector == nil {
		cfg.Detector = bypass.NewDetector()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy is picked per request and carried in the request context, so
	// one transport serves every proxy.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(fingerprint.Options{
		Profile:            cfg.Fingerprint,
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: cfg.Logger}, nil
}

// Fetch GETs targetURL. Any HTTP status is a Response; only transport
// failures (DNS, TLS, timeout, rate limiter cancellation) return an error,
// of kind fault.KindTransientFetch.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fault.New(fault.KindTransientFetch, "fetch", fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	res := &Response{
		ID:        uuid.New().String(),
		URL:       targetURL,
		FetchedAt: start.UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fault.New(fault.KindTransientFetch, "fetch", fmt.Errorf("build request: %w", err))
	}
	domain := req.URL.Hostname()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		metrics.RecordFetch(domain, metrics.FetchObservation{Failed: true, Duration: time.Since(start)})
		return nil, fault.New(fault.KindTransientFetch, "fetch", err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		metrics.RecordFetch(domain, metrics.FetchObservation{StatusCode: resp.StatusCode, Failed: true, Duration: time.Since(start)})
		return nil, fault.New(fault.KindTransientFetch, "fetch", fmt.Errorf("read body: %w", err))
	}

	res.FinalURL = resp.Request.URL.String()
	res.StatusCode = resp.StatusCode
	res.Header = resp.Header
	res.Body = body
	res.Duration = time.Since(start)

	if vendor, ok := f.config.Detector.Detect(bypass.Sample{StatusCode: res.StatusCode, Header: res.Header, Body: body}); ok {
		res.BlockedBy = vendor
		f.logger.Warn("bot protection challenge", "url", targetURL, "vendor", vendor, "status", res.StatusCode)
	}

	metrics.RecordFetch(domain, metrics.FetchObservation{
		StatusCode:   res.StatusCode,
		DetectionSrc: res.BlockedBy,
		Duration:     res.Duration,
		Bytes:        len(body),
	})

	return res, nil
}
