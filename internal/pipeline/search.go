package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/rival/internal/analyzer"
	"github.com/FranksOps/rival/internal/identity"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/serp"
	"github.com/FranksOps/rival/internal/storage"
)

// searchArtifact is the cached form of a query's search items. Only fully
// analyzed result sets are stored, so items carry no status.
type searchArtifact struct {
	Items []searchRecord `json:"items"`
}

type searchRecord struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Analysis string `json:"analysis"`
}

type searchOutcome struct {
	items     []model.SearchItem
	fromCache bool
	storedAt  time.Time
	err       error
}

func (p *Pipeline) collectSearch(ctx context.Context, logger *slog.Logger, query string, limit int) searchOutcome {
	logger = logger.With("query_key", identity.Hash(query).Short())

	if entry, ok := p.store.Get(ctx, storage.ClassSearchResults, query); ok {
		var art searchArtifact
		if err := entry.Decode(&art); err == nil && len(art.Items) > 0 {
			logger.Debug("search results served from cache", "stored_at", entry.StoredAt)
			return searchOutcome{
				items:     cachedItems(art.Items, limit, entry.StoredAt),
				fromCache: true,
				storedAt:  entry.StoredAt,
			}
		}
		logger.Warn("cached search results unusable, refreshing", "stored_at", entry.StoredAt)
	}

	sctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	hits, err := p.searcher.Search(sctx, query, limit)
	cancel()
	if err != nil {
		logger.Warn("search failed", "err", err)
		return searchOutcome{items: []model.SearchItem{}, err: err}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	items := make([]model.SearchItem, len(hits))
	kept := make([]bool, len(hits))
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, h := range hits {
		g.Go(func() error {
			items[i], kept[i] = p.searchItem(ctx, logger, h)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.SearchItem, 0, len(items))
	clean := true
	for i, it := range items {
		if !kept[i] {
			continue
		}
		if it.Status != model.SearchOK {
			clean = false
		}
		out = append(out, it)
	}

	updated := p.cfg.Now().UTC()
	if clean && len(out) > 0 {
		if storedAt, err := p.store.Put(ctx, storage.ClassSearchResults, query, toArtifact(out)); err != nil {
			logger.Warn("search results not cached", "err", err)
		} else {
			updated = storedAt
		}
	} else {
		logger.Info("search results not cached", "items", len(out), "complete", clean)
	}

	for i := range out {
		out[i].Provenance = model.Provenance{Source: model.SourceNew, LastUpdated: updated}
	}
	return searchOutcome{items: out}
}

// searchItem analyzes one hit. It reports false when the hit is dropped
// because its page could not be fetched.
func (p *Pipeline) searchItem(ctx context.Context, logger *slog.Logger, h serp.Hit) (model.SearchItem, bool) {
	item := model.SearchItem{Title: h.Title, URL: h.URL, Snippet: h.Snippet}
	content := analyzer.Content{Title: h.Title, URL: h.URL, Text: h.Snippet}

	if p.cfg.FetchPages {
		fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		page, err := p.pages.FetchPage(fctx, h.URL)
		cancel()
		if err != nil {
			logger.Debug("dropping search hit", "url", h.URL, "err", err)
			metrics.SearchHitsDropped.WithLabelValues("page_failed").Inc()
			return item, false
		}
		content.Description = page.Description
		content.Text = page.Text
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzeTimeout)
	analysis, err := p.analyzer.Summarize(actx, content)
	cancel()
	if err != nil {
		item.Analysis = model.AnalysisUnavailable
		item.Status = model.SearchAnalysisUnavailable
		return item, true
	}
	item.Analysis = analysis
	item.Status = model.SearchOK
	return item, true
}

func cachedItems(records []searchRecord, limit int, storedAt time.Time) []model.SearchItem {
	if len(records) > limit {
		records = records[:limit]
	}
	items := make([]model.SearchItem, len(records))
	for i, r := range records {
		items[i] = model.SearchItem{
			Title:      r.Title,
			URL:        r.URL,
			Snippet:    r.Snippet,
			Analysis:   r.Analysis,
			Status:     model.SearchOK,
			Provenance: model.Provenance{Source: model.SourceCached, LastUpdated: storedAt},
		}
	}
	return items
}

func toArtifact(items []model.SearchItem) searchArtifact {
	art := searchArtifact{Items: make([]searchRecord, len(items))}
	for i, it := range items {
		art.Items[i] = searchRecord{Title: it.Title, URL: it.URL, Snippet: it.Snippet, Analysis: it.Analysis}
	}
	return art
}
