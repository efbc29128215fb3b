//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/rival/internal/analyzer"
	"github.com/FranksOps/rival/internal/cache"
	"github.com/FranksOps/rival/internal/fingerprint"
	"github.com/FranksOps/rival/internal/freshness"
	"github.com/FranksOps/rival/internal/llm"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/internal/pipeline"
	"github.com/FranksOps/rival/internal/report"
	"github.com/FranksOps/rival/internal/scraper"
	"github.com/FranksOps/rival/internal/serp"
	"github.com/FranksOps/rival/pkg/httpclient"
	"github.com/FranksOps/rival/pkg/proxy"
	"github.com/FranksOps/rival/pkg/ratelimit"
	"github.com/FranksOps/rival/pkg/useragent"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// llmServer answers chat completions the way an OpenAI-compatible endpoint
// does, picking a canned JSON reply from the prompt.
func llmServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content

		var reply string
		switch {
		case strings.Contains(prompt, "company website"):
			reply = `{"company_info": {"name": "Acme", "industry": "Project management", "founded_year": 2012},
				"product_service": {"features": ["Boards", "Timelines"]}}`
		case strings.Contains(prompt, "SWOT"):
			reply = `{"strengths": ["Mature tools"], "weaknesses": [], "opportunities": ["AI planning"], "threats": ["Price pressure"]}`
		case strings.Contains(prompt, "competitive"):
			reply = `{"points": ["Broad integrations"]}`
		default:
			reply = `{"analysis": "A project tool for small teams."}`
		}

		content, _ := json.Marshal(reply)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, content)
	}))
}

// searchServer mimics the Brave web search API.
func searchServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"web": {"results": [
			{"title": "Best PM tools", "url": "https://reviews.example.com/pm", "description": "A roundup of <b>project</b> tools."},
			{"title": "Acme", "url": "https://acme.example.com/", "description": "Plan work together."}
		]}}`)
	}))
}

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Acme</title><meta name="description" content="Plan work together"></head>
			<body><p>Acme was founded in 2012. Pricing starts at $10 per user.</p><a href="/pricing">Pricing</a></body></html>`)
	})
	return httptest.NewServer(mux)
}

func newPipeline(t *testing.T, store *cache.Store, searchURL, llmURL string) (*pipeline.Pipeline, *report.Assembler) {
	t.Helper()
	ctx := context.Background()

	client, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	searcher, err := serp.New(serp.Config{Provider: "brave", APIKey: "test", Endpoint: searchURL, Logger: discard}, client)
	if err != nil {
		t.Fatalf("failed to create searcher: %v", err)
	}
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Logger:      discard,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	provider, err := llm.New(ctx, llm.Config{Provider: "openai", APIKey: "test", Model: "test-model", BaseURL: llmURL})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	an := analyzer.New(provider, analyzer.Config{Limiter: ratelimit.NewLimiter(0, 0), Logger: discard})

	p := pipeline.New(pipeline.Config{Concurrency: 2}, store, searcher, fetcher, an, discard)
	return p, report.NewAssembler(an, report.AssemblerConfig{Logger: discard})
}

func TestIntegration_CollectThroughSQLite(t *testing.T) {
	var searchCalls, llmCalls int32
	search := searchServer(t, &searchCalls)
	defer search.Close()
	llmSrv := llmServer(t, &llmCalls)
	defer llmSrv.Close()
	site := siteServer(t)
	defer site.Close()

	ctx := context.Background()
	backend, err := cache.OpenBackend(ctx, cache.BackendConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "rival.db")})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store := cache.New(backend, cache.Config{Policy: freshness.DefaultPolicy(), Logger: discard})
	defer store.Close()

	p, asm := newPipeline(t, store, search.URL, llmSrv.URL+"/v1")

	req := model.CollectionRequest{Query: "project management software", NumResults: 2, Competitors: []string{site.URL, "http://127.0.0.1:1"}}
	first, err := p.Collect(ctx, req)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if len(first.SearchItems) != 2 {
		t.Fatalf("expected 2 search items, got %d", len(first.SearchItems))
	}
	for _, it := range first.SearchItems {
		if it.Provenance.Source != model.SourceNew || it.Status != model.SearchOK {
			t.Errorf("expected new analyzed item, got %+v", it)
		}
	}
	if first.SearchItems[0].Snippet != "A roundup of project tools." {
		t.Errorf("expected markup stripped from snippet, got %q", first.SearchItems[0].Snippet)
	}

	if len(first.CompetitorItems) != 2 {
		t.Fatalf("expected 2 competitor items, got %d", len(first.CompetitorItems))
	}
	ok, failed := first.CompetitorItems[0], first.CompetitorItems[1]
	if ok.Status != model.CompetitorOK || ok.Provenance.Source != model.SourceNew {
		t.Errorf("expected fresh profile, got %s/%s (%s)", ok.Status, ok.Provenance.Source, ok.Error)
	}
	if ok.Profile.CompanyInfo.Name != "Acme" || ok.Profile.CompanyInfo.FoundedYear == nil || *ok.Profile.CompanyInfo.FoundedYear != 2012 {
		t.Errorf("unexpected profile: %+v", ok.Profile.CompanyInfo)
	}
	if failed.Status != model.CompetitorFetchFailed || failed.Provenance.Source != model.SourceError {
		t.Errorf("expected fetch_failed placeholder, got %s/%s", failed.Status, failed.Provenance.Source)
	}

	callsAfterFirst := atomic.LoadInt32(&llmCalls)
	searchesAfterFirst := atomic.LoadInt32(&searchCalls)

	second, err := p.Collect(ctx, req)
	if err != nil {
		t.Fatalf("second collect failed: %v", err)
	}
	if n := atomic.LoadInt32(&searchCalls); n != searchesAfterFirst {
		t.Errorf("expected the search to be served from cache, got %d new calls", n-searchesAfterFirst)
	}
	if second.SearchItems[0].Provenance.Source != model.SourceCached {
		t.Errorf("expected cached search item, got %s", second.SearchItems[0].Provenance.Source)
	}
	if !second.SearchItems[0].Provenance.LastUpdated.Equal(first.SearchItems[0].Provenance.LastUpdated) {
		t.Errorf("cached item should keep its stored time")
	}
	if second.CompetitorItems[0].Provenance.Source != model.SourceCached {
		t.Errorf("expected cached profile, got %s", second.CompetitorItems[0].Provenance.Source)
	}
	if second.CompetitorItems[1].Provenance.Source != model.SourceError {
		t.Errorf("a failed competitor must be retried, not cached")
	}
	// Only the retried competitor may hit the model again, and it fails before analysis.
	if atomic.LoadInt32(&llmCalls) != callsAfterFirst {
		t.Errorf("expected no new analyzer calls, got %d", atomic.LoadInt32(&llmCalls)-callsAfterFirst)
	}

	rep := asm.Assemble(ctx, second)
	if len(rep.SWOT.Strengths) != 1 || rep.SWOT.Strengths[0] != "Mature tools" {
		t.Errorf("unexpected swot: %+v", rep.SWOT)
	}
	if rep.Comparison == nil || len(rep.Comparison.CompetitiveAdvantages) != 1 {
		t.Errorf("expected a comparison, got %+v", rep.Comparison)
	}
}

func TestIntegration_ProxyRotation(t *testing.T) {
	var proxyHits int32
	proxySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxyHits, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>Proxied</title></head><body>proxied content</body></html>")
	}))
	defer proxySrv.Close()

	pPool := proxy.NewPool(proxy.Config{})
	if err := pPool.Add(proxySrv.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		ProxyPool:   pPool,
		UAPool:      useragent.NewPool([]string{"IntegrationTest-UA"}, useragent.RoundRobin),
		Logger:      discard,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	// A non-local URL forces the request through the proxy.
	page, err := fetcher.FetchPage(context.Background(), "http://example.com/testproxy")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if atomic.LoadInt32(&proxyHits) == 0 {
		t.Errorf("expected proxy server to be hit, got 0")
	}
	if page.Title != "Proxied" {
		t.Errorf("expected proxied page, got title %q", page.Title)
	}
}

func TestIntegration_CrawlerSharesCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "123456", Path: "/"})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/protected">Protected</a></body></html>`)
	})
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_id")
		if err != nil || cookie.Value != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Protected</title></head><body>Protected content</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      5 * time.Second,
		Fingerprint:  fingerprint.ProfileGo,
		UseCookieJar: true,
		Logger:       discard,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	crawler := scraper.NewCrawler(scraper.CrawlConfig{MaxPages: 2, MaxDepth: 1, Concurrency: 1}, fetcher, discard)

	pages, err := crawler.Collect(context.Background(), srv.URL+"/login")
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected login and protected pages, got %d", len(pages))
	}
	if pages[1].Title != "Protected" {
		t.Errorf("expected the cookie to unlock /protected, got %q", pages[1].Title)
	}
}
