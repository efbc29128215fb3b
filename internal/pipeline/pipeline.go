// Package pipeline collects search results and competitor profiles for one
// request. Each artifact is served from the cache while fresh and fetched
// and analyzed otherwise; every returned item says which happened.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/rival/internal/analyzer"
	"github.com/FranksOps/rival/internal/cache"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/scraper"
	"github.com/FranksOps/rival/internal/serp"
	"github.com/FranksOps/rival/internal/storage"
)

// Store is the artifact cache the pipeline reads through.
type Store interface {
	Get(ctx context.Context, class storage.Class, identifier string) (cache.Entry, bool)
	Put(ctx context.Context, class storage.Class, identifier string, payload any) (time.Time, error)
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]serp.Hit, error)
}

// PageFetcher fetches and extracts single pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*scraper.Page, error)
}

// SiteCrawler collects several pages of one site, seed first.
type SiteCrawler interface {
	Collect(ctx context.Context, seed string) ([]*scraper.Page, error)
}

// Analyzer produces the per-item analysis.
type Analyzer interface {
	Summarize(ctx context.Context, c analyzer.Content) (string, error)
	StructuredProfile(ctx context.Context, c analyzer.Content) (model.CompetitorProfile, error)
}

// Config tunes a Pipeline. Zero values take the defaults noted.
type Config struct {
	// Concurrency bounds parallel work within each batch (default 4).
	Concurrency int
	// SearchTimeout bounds one search call (default 30s).
	SearchTimeout time.Duration
	// FetchTimeout bounds fetching one page (default 30s).
	FetchTimeout time.Duration
	// CrawlTimeout bounds one competitor site crawl (default 2x FetchTimeout).
	CrawlTimeout time.Duration
	// AnalyzeTimeout bounds one analyzer call (default 60s).
	AnalyzeTimeout time.Duration
	// FetchPages makes search items analyzed from the hit's page rather
	// than its snippet. A hit whose page cannot be fetched is dropped.
	FetchPages bool
	// Crawler, when set, enriches competitor profiles with more pages of
	// the competitor's site.
	Crawler SiteCrawler
	// Now is the clock for provenance timestamps (default time.Now).
	Now func() time.Time
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	store    Store
	searcher Searcher
	pages    PageFetcher
	analyzer Analyzer
	logger   *slog.Logger
}

// New wires a Pipeline. The store is owned by the caller.
func New(cfg Config, store Store, searcher Searcher, pages PageFetcher, an Analyzer, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.CrawlTimeout <= 0 {
		cfg.CrawlTimeout = 2 * cfg.FetchTimeout
	}
	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		searcher: searcher,
		pages:    pages,
		analyzer: an,
		logger:   logger,
	}
}

// Collect gathers the search items and competitor items for req. It fails
// only for an invalid request or a context that is already done; every
// per-item failure is reported inside the result.
func (p *Pipeline) Collect(ctx context.Context, req model.CollectionRequest) (*model.CollectionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Competitors = slices.Clone(req.Competitors)
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &model.CollectionResult{
		RequestID: uuid.NewString(),
		Query:     req.Query,
	}
	logger := p.logger.With("request_id", res.RequestID)
	warnDuplicates(logger, req.Competitors)

	var (
		search      searchOutcome
		competitors []model.CompetitorItem
		g           errgroup.Group
	)
	g.Go(func() error {
		search = p.collectSearch(ctx, logger, req.Query, req.NumResults)
		return nil
	})
	g.Go(func() error {
		competitors = p.collectCompetitors(ctx, logger, req.Competitors)
		return nil
	})
	_ = g.Wait()

	res.SearchItems = search.items
	res.CompetitorItems = competitors
	res.DataSourceInfo = sourceInfo(search, competitors)
	res.CollectedAt = p.cfg.Now().UTC()

	metrics.CollectDuration.Observe(time.Since(start).Seconds())
	for _, it := range res.SearchItems {
		metrics.CollectedItems.WithLabelValues("search", string(it.Provenance.Source)).Inc()
	}
	for _, it := range res.CompetitorItems {
		metrics.CollectedItems.WithLabelValues("competitor", string(it.Provenance.Source)).Inc()
	}
	logger.Info("collection finished",
		"query", req.Query,
		"search_items", len(res.SearchItems),
		"search_cached", search.fromCache,
		"competitors", len(res.CompetitorItems),
		"failed_competitors", len(res.DataSourceInfo.FailedCompetitors),
		"duration", time.Since(start),
	)
	return res, nil
}

// sourceInfo summarizes where the items of a collection came from.
func sourceInfo(search searchOutcome, competitors []model.CompetitorItem) model.DataSourceInfo {
	info := model.DataSourceInfo{
		SearchResultsFromCache: search.fromCache,
		CompetitorsFromCache:   []string{},
		FreshCompetitors:       []string{},
		FailedCompetitors:      []string{},
	}
	if search.err != nil {
		info.SearchError = search.err.Error()
	}

	var latest time.Time
	if search.fromCache {
		latest = search.storedAt
	}
	for _, c := range competitors {
		switch c.Provenance.Source {
		case model.SourceCached:
			info.CompetitorsFromCache = append(info.CompetitorsFromCache, c.Identifier)
			if c.Provenance.LastUpdated.After(latest) {
				latest = c.Provenance.LastUpdated
			}
		case model.SourceNew:
			info.FreshCompetitors = append(info.FreshCompetitors, c.Identifier)
		default:
			info.FailedCompetitors = append(info.FailedCompetitors, c.Identifier)
		}
	}
	if !latest.IsZero() {
		info.LastCacheUpdate = &latest
	}
	return info
}

func warnDuplicates(logger *slog.Logger, ids []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			logger.Warn("duplicate competitor in request; each copy is processed independently", "competitor", id)
			continue
		}
		seen[id] = struct{}{}
	}
}
