package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	sitemap "github.com/oxffaa/gopher-parse-sitemap"
)

// maxSitemapDepth bounds recursion through nested sitemap indexes.
const maxSitemapDepth = 3

// SitemapFetcher discovers page URLs from sitemaps and sitemap indexes.
type SitemapFetcher struct {
	fetcher *Fetcher
	logger  *slog.Logger
	// MaxURLs stops collection once reached. Zero means no limit.
	MaxURLs int
}

// NewSitemapFetcher initializes a new SitemapFetcher.
func NewSitemapFetcher(fetcher *Fetcher, logger *slog.Logger) *SitemapFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapFetcher{
		fetcher: fetcher,
		logger:  logger,
	}
}

// FetchSitemap fetches a sitemap or sitemap index and returns the page URLs
// it lists, following nested indexes.
func (s *SitemapFetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.fetch(ctx, sitemapURL, 0)
}

func (s *SitemapFetcher) fetch(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL)

	res, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("bad status code: %d", res.StatusCode)
	}

	var urls []string
	err = sitemap.Parse(bytes.NewReader(res.Body), func(e sitemap.Entry) error {
		if s.full(urls) {
			return nil
		}
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(res.Body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		if err == nil {
			err = indexErr
		}
		if err == nil {
			return nil, fmt.Errorf("failed to parse as sitemap or index: no entries")
		}
		return nil, fmt.Errorf("failed to parse as sitemap or index: %w", err)
	}
	if depth >= maxSitemapDepth {
		return nil, fmt.Errorf("sitemap index nested deeper than %d", maxSitemapDepth)
	}

	for _, nestedURL := range nested {
		if s.full(urls) {
			break
		}
		nestedURLs, fetchErr := s.fetch(ctx, nestedURL, depth+1)
		if fetchErr != nil {
			s.logger.Warn("failed to fetch nested sitemap", "url", nestedURL, "err", fetchErr)
			continue
		}
		urls = append(urls, nestedURLs...)
	}
	if s.MaxURLs > 0 && len(urls) > s.MaxURLs {
		urls = urls[:s.MaxURLs]
	}
	return urls, nil
}

func (s *SitemapFetcher) full(urls []string) bool {
	return s.MaxURLs > 0 && len(urls) >= s.MaxURLs
}
