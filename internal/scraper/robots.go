package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsEntry is one origin's robots.txt. done closes once the fetch
// settles; data stays nil when the origin has no usable file.
type robotsEntry struct {
	done chan struct{}
	data *robotstxt.RobotsData
	err  error
}

// RobotsTxtAuditor answers robots.txt questions for the competitor sites a
// crawl visits. Each origin's file is fetched once; concurrent callers for
// the same origin wait on that single fetch.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	origins map[string]*robotsEntry
}

// NewRobotsTxtAuditor creates an auditor that fetches through fetcher.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		origins: make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. An origin without
// a readable robots.txt allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data, err := r.rules(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", u.Host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return data.FindGroup(userAgent).Test(p), nil
}

// Sitemaps returns the sitemap URLs declared by origin's robots.txt. A bare
// host is taken as https.
func (r *RobotsTxtAuditor) Sitemaps(ctx context.Context, origin string) []string {
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}
	data, err := r.rules(ctx, origin)
	if err != nil || data == nil {
		return nil
	}
	return data.Sitemaps
}

// rules returns origin's parsed robots.txt. Transport failures are not
// remembered, so a later page of the crawl tries again; an HTTP error status
// or a bot challenge is remembered as "no rules".
func (r *RobotsTxtAuditor) rules(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	e, ok := r.origins[origin]
	if !ok {
		e = &robotsEntry{done: make(chan struct{})}
		r.origins[origin] = e
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-e.done:
			return e.data, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var keep bool
	e.data, keep, e.err = r.load(ctx, origin)
	if !keep {
		r.mu.Lock()
		delete(r.origins, origin)
		r.mu.Unlock()
	}
	close(e.done)
	return e.data, e.err
}

// load fetches and parses origin's robots.txt. keep is false when the
// outcome should not be remembered.
func (r *RobotsTxtAuditor) load(ctx context.Context, origin string) (data *robotstxt.RobotsData, keep bool, err error) {
	res, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, false, err
	}
	if res.StatusCode >= http.StatusBadRequest || res.BlockedBy != "" {
		return nil, true, nil
	}
	data, err = robotstxt.FromBytes(res.Body)
	if err != nil {
		return nil, true, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, true, nil
}
