package serp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/FranksOps/rival/pkg/httpclient"
)

const (
	braveEndpoint = "https://api.search.brave.com/res/v1/web/search"
	bravePageSize = 20
	braveMaxPage  = 9
)

// Brave queries the Brave Search web API.
type Brave struct {
	key      string
	endpoint string
	client   *httpclient.Client
	logger   *slog.Logger
}

// NewBrave returns a Brave provider. An empty endpoint uses the public API.
func NewBrave(key, endpoint string, client *httpclient.Client, logger *slog.Logger) *Brave {
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Brave{key: key, endpoint: endpoint, client: client, logger: logger}
}

func (b *Brave) Name() string { return "brave" }

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search pages through results with the offset parameter.
func (b *Brave) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	header := http.Header{}
	header.Set("X-Subscription-Token", b.key)

	// offset counts pages of count hits, so count stays fixed across pages.
	count := min(bravePageSize, limit)

	var hits []Hit
	for page := 0; page <= braveMaxPage && len(hits) < limit; page++ {

		v := url.Values{}
		v.Set("q", query)
		v.Set("count", strconv.Itoa(count))
		if page > 0 {
			v.Set("offset", strconv.Itoa(page))
		}

		var resp braveResponse
		if err := b.client.GetJSON(ctx, b.endpoint+"?"+v.Encode(), header, &resp); err != nil {
			if page == 0 {
				return nil, searchError(b.Name(), err)
			}
			b.logger.Warn("brave search page failed, returning partial results", "page", page, "err", err)
			break
		}

		raw := make([]Hit, 0, len(resp.Web.Results))
		for _, r := range resp.Web.Results {
			raw = append(raw, Hit{Title: r.Title, URL: r.URL, Snippet: r.Description})
		}
		hits = collect(hits, raw, b.logger, b.Name())

		if len(resp.Web.Results) < count {
			break
		}
	}

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
