package serp

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/FranksOps/rival/pkg/httpclient"
)

const (
	googleEndpoint = "https://www.googleapis.com/customsearch/v1"
	googlePageSize = 10
	// The JSON API refuses start+num beyond 100.
	googleMaxResults = 100
)

// GooglePSE queries the Google Programmable Search Engine JSON API.
type GooglePSE struct {
	key      string
	cx       string
	endpoint string
	client   *httpclient.Client
	logger   *slog.Logger
}

// NewGooglePSE returns a provider for engine cx. An empty endpoint uses the
// public API.
func NewGooglePSE(key, cx, endpoint string, client *httpclient.Client, logger *slog.Logger) *GooglePSE {
	if endpoint == "" {
		endpoint = googleEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GooglePSE{key: key, cx: cx, endpoint: endpoint, client: client, logger: logger}
}

func (g *GooglePSE) Name() string { return "google_pse" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search pages through results ten at a time. A failure after the first
// page returns the hits gathered so far.
func (g *GooglePSE) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	limit = min(limit, googleMaxResults)
	var hits []Hit

	for start := 1; start <= limit; start += googlePageSize {
		num := min(googlePageSize, limit-start+1)

		v := url.Values{}
		v.Set("key", g.key)
		v.Set("cx", g.cx)
		v.Set("q", query)
		v.Set("num", strconv.Itoa(num))
		if start > 1 {
			v.Set("start", strconv.Itoa(start))
		}

		var resp googleResponse
		if err := g.client.GetJSON(ctx, g.endpoint+"?"+v.Encode(), nil, &resp); err != nil {
			if start == 1 {
				return nil, searchError(g.Name(), err)
			}
			g.logger.Warn("google search page failed, returning partial results", "start", start, "err", err)
			break
		}

		raw := make([]Hit, 0, len(resp.Items))
		for _, it := range resp.Items {
			raw = append(raw, Hit{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
		}
		hits = collect(hits, raw, g.logger, g.Name())

		if len(resp.Items) < num {
			break
		}
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
