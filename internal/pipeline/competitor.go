package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/rival/internal/analyzer"
	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/identity"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/scraper"
	"github.com/FranksOps/rival/internal/storage"
)

// competitorArtifact is the cached form of one competitor profile.
type competitorArtifact struct {
	Website string                  `json:"website"`
	Profile model.CompetitorProfile `json:"profile"`
}

// profileOutcome is the result of building one profile: a profile with
// CompetitorOK, or a failure status with its cause.
type profileOutcome struct {
	website string
	profile model.CompetitorProfile
	status  model.CompetitorStatus
	err     error
}

var errNoWebsite = errors.New("no website found")

// collectCompetitors builds one item per identifier, in input order.
func (p *Pipeline) collectCompetitors(ctx context.Context, logger *slog.Logger, ids []string) []model.CompetitorItem {
	items := make([]model.CompetitorItem, len(ids))
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			items[i] = p.competitor(ctx, logger.With("competitor", id, "key", identity.Hash(id).Short()), id)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (p *Pipeline) competitor(ctx context.Context, logger *slog.Logger, id string) model.CompetitorItem {
	if entry, ok := p.store.Get(ctx, storage.ClassCompetitorProfiles, id); ok {
		var art competitorArtifact
		if err := entry.Decode(&art); err == nil {
			art.Profile.FillDefaults()
			logger.Debug("competitor served from cache", "stored_at", entry.StoredAt)
			return model.CompetitorItem{
				Identifier: id,
				Website:    art.Website,
				Status:     model.CompetitorOK,
				Profile:    art.Profile,
				Provenance: model.Provenance{Source: model.SourceCached, LastUpdated: entry.StoredAt},
			}
		}
		logger.Warn("cached profile unusable, refreshing", "stored_at", entry.StoredAt)
	}

	out := p.buildProfile(ctx, id)
	if out.status != model.CompetitorOK {
		logger.Warn("competitor profile unavailable", "status", out.status, "website", out.website, "err", out.err)
		return model.CompetitorItem{
			Identifier: id,
			Website:    out.website,
			Status:     out.status,
			Error:      out.err.Error(),
			Profile:    model.PlaceholderProfile(id, out.website),
			Provenance: model.Provenance{Source: model.SourceError, LastUpdated: p.cfg.Now().UTC()},
		}
	}

	updated := p.cfg.Now().UTC()
	storedAt, err := p.store.Put(ctx, storage.ClassCompetitorProfiles, id, competitorArtifact{Website: out.website, Profile: out.profile})
	if err != nil {
		logger.Warn("competitor profile not cached", "err", err)
	} else {
		updated = storedAt
	}
	return model.CompetitorItem{
		Identifier: id,
		Website:    out.website,
		Status:     model.CompetitorOK,
		Profile:    out.profile,
		Provenance: model.Provenance{Source: model.SourceNew, LastUpdated: updated},
	}
}

// buildProfile resolves, fetches and analyzes one competitor.
func (p *Pipeline) buildProfile(ctx context.Context, id string) profileOutcome {
	website, err := p.resolveWebsite(ctx, id)
	if err != nil {
		status := model.CompetitorFetchFailed
		if errors.Is(err, fault.ErrNotFound) {
			status = model.CompetitorNotFound
		}
		return profileOutcome{status: status, err: err}
	}

	content, err := p.fetchSite(ctx, website)
	if err != nil {
		return profileOutcome{website: website, status: model.CompetitorFetchFailed, err: err}
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AnalyzeTimeout)
	profile, err := p.analyzer.StructuredProfile(actx, content)
	cancel()
	if err != nil {
		return profileOutcome{website: website, status: model.CompetitorAnalysisFailed, err: err}
	}
	if profile.CompanyInfo.Website == "" || profile.CompanyInfo.Website == model.Unknown {
		profile.CompanyInfo.Website = website
	}
	profile.FillDefaults()
	return profileOutcome{website: website, profile: profile, status: model.CompetitorOK}
}

// resolveWebsite maps an identifier to a site URL. URLs are used as given,
// bare domains get https, and anything else is looked up by search.
func (p *Pipeline) resolveWebsite(ctx context.Context, id string) (string, error) {
	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return id, nil
	}
	if isDomain(id) {
		return "https://" + id, nil
	}

	sctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()
	hits, err := p.searcher.Search(sctx, id+" official website", 1)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", fault.New(fault.KindNotFound, "resolve website", errNoWebsite)
	}
	return hits[0].URL, nil
}

// isDomain reports whether s looks like a host name such as asana.com.
func isDomain(s string) bool {
	if strings.ContainsAny(s, " \t/?#@") || !strings.Contains(s, ".") {
		return false
	}
	u, err := url.Parse("https://" + s)
	if err != nil || u.Hostname() != s {
		return false
	}
	labels := strings.Split(s, ".")
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// fetchSite returns the content to profile: the homepage, or with a crawler
// configured, the homepage plus whatever pages of the same site the crawl
// collected within CrawlTimeout. Only a homepage failure is an error.
func (p *Pipeline) fetchSite(ctx context.Context, website string) (analyzer.Content, error) {
	timeout := p.cfg.FetchTimeout
	if p.cfg.Crawler != nil {
		timeout = p.cfg.CrawlTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var pages []*scraper.Page
	if p.cfg.Crawler != nil {
		var err error
		if pages, err = p.cfg.Crawler.Collect(fctx, website); err != nil {
			return analyzer.Content{}, err
		}
	} else {
		page, err := p.pages.FetchPage(fctx, website)
		if err != nil {
			return analyzer.Content{}, err
		}
		pages = []*scraper.Page{page}
	}
	if len(pages) == 0 {
		return analyzer.Content{}, fault.Newf(fault.KindTransientFetch, "fetch site", "%s: no pages", website)
	}

	home := pages[0]
	c := analyzer.Content{Title: home.Title, URL: home.URL, Description: home.Description, Text: home.Text}
	if len(pages) > 1 {
		var sb strings.Builder
		sb.WriteString(home.Text)
		for _, pg := range pages[1:] {
			sb.WriteString("\n\n")
			sb.WriteString(pg.Title)
			sb.WriteString(". ")
			sb.WriteString(pg.Text)
		}
		c.Text = sb.String()
	}
	return c, nil
}
