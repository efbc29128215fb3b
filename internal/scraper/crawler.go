package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CrawlConfig bounds a same-site crawl.
type CrawlConfig struct {
	// MaxPages caps the pages returned, seed included (0 = default 5).
	MaxPages int
	// MaxDepth is how many link hops from the seed are followed (0 = default 1).
	MaxDepth    int
	Concurrency int
	// ExtraTimeout bounds the pages after the seed (0 = only the caller's
	// context). When it runs out the crawl stops with what it has.
	ExtraTimeout time.Duration
	// RespectRobots skips discovered paths robots.txt disallows for
	// UserAgent. The seed is the page asked for and is always fetched, as a
	// single-page fetch would be.
	RespectRobots bool
	// UseSitemap seeds the crawl with the site's sitemap.
	UseSitemap bool
	// UserAgent is the token matched against robots.txt groups.
	UserAgent string
}

// Crawler collects a handful of pages from one site. It is safe for
// concurrent use; each Collect call keeps its own visited set.
type Crawler struct {
	cfg      CrawlConfig
	fetcher  *Fetcher
	logger   *slog.Logger
	auditor  *RobotsTxtAuditor
	sitemaps *SitemapFetcher
}

type job struct {
	URL   string
	Depth int
	order int
}

// NewCrawler creates a crawler over fetcher.
func NewCrawler(cfg CrawlConfig, fetcher *Fetcher, logger *slog.Logger) *Crawler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "*"
	}

	c := &Crawler{cfg: cfg, fetcher: fetcher, logger: logger}
	if cfg.RespectRobots || cfg.UseSitemap {
		c.auditor = NewRobotsTxtAuditor(fetcher, logger)
	}
	if cfg.UseSitemap {
		c.sitemaps = NewSitemapFetcher(fetcher, logger)
		c.sitemaps.MaxURLs = cfg.MaxPages * 4
	}
	return c
}

// crawl is the state of one Collect call.
type crawl struct {
	*Crawler
	domain string

	mu       sync.Mutex
	visited  map[string]struct{}
	admitted int
	pages    map[int]*Page
}

// Collect fetches seed and up to MaxPages-1 further pages of the same site,
// found through the sitemap and the seed's links. The seed comes first in
// the result and only a seed failure is returned as the error. The further
// pages are best effort: failures are logged and skipped, and a context or
// ExtraTimeout running out ends the crawl with the pages collected so far.
func (c *Crawler) Collect(ctx context.Context, seed string) ([]*Page, error) {
	u, err := url.Parse(seed)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid seed url %q", seed)
	}

	cr := &crawl{
		Crawler: c,
		domain:  strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."),
		visited: make(map[string]struct{}),
		pages:   make(map[int]*Page),
	}
	cr.admit(seed)

	first, err := c.fetcher.FetchPage(ctx, seed)
	if err != nil {
		return nil, err
	}
	cr.pages[0] = first

	if c.cfg.ExtraTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ExtraTimeout)
		defer cancel()
	}

	var frontier []job
	if c.cfg.UseSitemap {
		for _, link := range cr.sitemapURLs(ctx, u) {
			if order, ok := cr.admit(link); ok {
				frontier = append(frontier, job{URL: link, Depth: 1, order: order})
			}
		}
	}
	for _, link := range first.Links {
		if order, ok := cr.admit(link); ok {
			frontier = append(frontier, job{URL: link, Depth: 1, order: order})
		}
	}

	if len(frontier) > 0 {
		cr.run(ctx, frontier)
		if err := ctx.Err(); err != nil {
			c.logger.Debug("crawl cut short", "seed", seed, "pages", len(cr.pages), "err", err)
		}
	}
	return cr.result(), nil
}

// run drains the BFS queue with Concurrency workers until the queue is
// empty or ctx is done.
func (cr *crawl) run(parent context.Context, seeds []job) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	queue := make(chan job, cr.cfg.MaxPages)
	var jobsWg sync.WaitGroup
	jobsWg.Add(len(seeds))
	for _, j := range seeds {
		queue <- j
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < cr.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case j := <-queue:
					cr.process(gCtx, j, queue, &jobsWg)
					jobsWg.Done()
				}
			}
		})
	}

	done := make(chan struct{})
	go func() {
		jobsWg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	cancel()
	_ = g.Wait()

	// Release jobs the stopped workers never picked up.
	for len(queue) > 0 {
		<-queue
		jobsWg.Done()
	}
	<-done
}

func (cr *crawl) process(ctx context.Context, j job, queue chan<- job, wg *sync.WaitGroup) {
	if cr.cfg.RespectRobots {
		allowed, err := cr.auditor.IsAllowed(ctx, j.URL, cr.cfg.UserAgent)
		if err != nil {
			cr.logger.Warn("error checking robots.txt", "url", j.URL, "err", err)
		} else if !allowed {
			cr.logger.Debug("url blocked by robots.txt", "url", j.URL)
			return
		}
	}

	cr.logger.Debug("fetching", "url", j.URL, "depth", j.Depth)
	page, err := cr.fetcher.FetchPage(ctx, j.URL)
	if err != nil {
		cr.logger.Debug("skipping page", "url", j.URL, "err", err)
		return
	}

	cr.mu.Lock()
	cr.pages[j.order] = page
	cr.mu.Unlock()

	if j.Depth >= cr.cfg.MaxDepth {
		return
	}
	for _, link := range page.Links {
		order, ok := cr.admit(link)
		if !ok {
			continue
		}
		wg.Add(1)
		// The queue holds MaxPages jobs and admit never hands out more.
		queue <- job{URL: link, Depth: j.Depth + 1, order: order}
	}
}

// admit marks rawURL visited and reserves a result slot, reporting false
// when the URL is out of scope, already seen or over budget.
func (cr *crawl) admit(rawURL string) (int, bool) {
	normalized, ok := cr.inScope(rawURL)
	if !ok {
		return 0, false
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, seen := cr.visited[normalized]; seen || cr.admitted >= cr.cfg.MaxPages {
		return 0, false
	}
	cr.visited[normalized] = struct{}{}
	order := cr.admitted
	cr.admitted++
	return order, true
}

var skippedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".zip", ".gz", ".mp4", ".mp3", ".css", ".js", ".xml", ".json",
}

func (cr *crawl) inScope(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != cr.domain && !strings.HasSuffix(host, "."+cr.domain) {
		return "", false
	}
	if slices.Contains(skippedExtensions, strings.ToLower(path.Ext(u.Path))) {
		return "", false
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}

func (cr *crawl) sitemapURLs(ctx context.Context, seed *url.URL) []string {
	origin := seed.Scheme + "://" + seed.Host
	declared := cr.auditor.Sitemaps(ctx, origin)
	if len(declared) == 0 {
		declared = []string{origin + "/sitemap.xml"}
	}

	var urls []string
	for _, sm := range declared {
		found, err := cr.sitemaps.FetchSitemap(ctx, sm)
		if err != nil {
			cr.logger.Debug("sitemap unavailable", "url", sm, "err", err)
			continue
		}
		urls = append(urls, found...)
	}
	return urls
}

func (cr *crawl) result() []*Page {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	orders := make([]int, 0, len(cr.pages))
	for o := range cr.pages {
		orders = append(orders, o)
	}
	slices.Sort(orders)

	pages := make([]*Page, 0, len(orders))
	for _, o := range orders {
		pages = append(pages, cr.pages[o])
	}
	return pages
}
