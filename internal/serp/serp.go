// Package serp talks to web search APIs and returns cleaned search hits.
package serp

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/pkg/httpclient"
)

// Hit is a single organic search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider abstracts a search engine that returns at most limit hits for
// query. Implementations may return fewer hits than asked for.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Config selects and authenticates a provider.
type Config struct {
	// Provider is google_pse or brave.
	Provider string
	APIKey   string
	// EngineID is the Google programmable search engine id (cx).
	EngineID string
	// Endpoint overrides the provider's default API URL.
	Endpoint string
	Logger   *slog.Logger
}

// New builds the provider named by cfg.Provider.
func New(cfg Config, client *httpclient.Client) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fault.Newf(fault.KindConfiguration, "serp", "%s: API key is required", cfg.Provider)
	}
	switch cfg.Provider {
	case "", "google_pse":
		if cfg.EngineID == "" {
			return nil, fault.Newf(fault.KindConfiguration, "serp", "google_pse: search engine id is required")
		}
		return NewGooglePSE(cfg.APIKey, cfg.EngineID, cfg.Endpoint, client, cfg.Logger), nil
	case "brave":
		return NewBrave(cfg.APIKey, cfg.Endpoint, client, cfg.Logger), nil
	default:
		return nil, fault.New(fault.KindConfiguration, "serp", fmt.Errorf("unknown search provider %q", cfg.Provider))
	}
}

var strict = bluemonday.StrictPolicy()

// stripMarkup removes tags from text the search API may have highlighted
// and decodes the entities left behind.
func stripMarkup(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(strict.Sanitize(s))), " ")
}

// clean normalizes a raw hit and reports whether it is usable. Hits without
// an absolute http(s) URL are malformed.
func clean(h Hit) (Hit, bool) {
	h.URL = strings.TrimSpace(h.URL)
	u, err := url.Parse(h.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Hit{}, false
	}
	h.Title = stripMarkup(h.Title)
	h.Snippet = stripMarkup(h.Snippet)
	if h.Title == "" {
		h.Title = u.Host
	}
	return h, true
}

// collect cleans raw and appends the usable hits to dst, counting drops.
func collect(dst []Hit, raw []Hit, logger *slog.Logger, provider string) []Hit {
	for _, r := range raw {
		h, ok := clean(r)
		if !ok {
			metrics.SearchHitsDropped.WithLabelValues("malformed").Inc()
			logger.Debug("dropping malformed search hit", "provider", provider, "url", r.URL)
			continue
		}
		dst = append(dst, h)
	}
	return dst
}

func searchError(provider string, err error) error {
	return fault.New(fault.KindTransientFetch, provider+" search", err)
}
