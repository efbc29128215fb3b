package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/rival/internal/fault"
)

const companyHTML = `<!DOCTYPE html>
<html>
<head>
  <title>  Acme | Project   tracking </title>
  <meta name="description" content="Plan and ship work together.">
  <style>body { color: red }</style>
  <script>var tracking = "do not read";</script>
</head>
<body>
  <nav><a href="/pricing">Pricing</a> <a href="/about#team">About</a> <a href="mailto:hi@acme.test">Mail</a></nav>
  <h1>Ship faster</h1>
  <p>Acme helps <strong>teams</strong> plan work.</p>
  <a href="/pricing">Pricing again</a>
  <a href="https://other.test/x">Partner</a>
</body>
</html>`

func TestParsePage(t *testing.T) {
	p, err := ParsePage("https://acme.test/", []byte(companyHTML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Title != "Acme | Project tracking" {
		t.Errorf("unexpected title %q", p.Title)
	}
	if p.Description != "Plan and ship work together." {
		t.Errorf("unexpected description %q", p.Description)
	}
	if strings.Contains(p.Text, "do not read") || strings.Contains(p.Text, "color: red") {
		t.Errorf("script or style leaked into text: %q", p.Text)
	}
	if !strings.Contains(p.Text, "Acme helps teams plan work.") {
		t.Errorf("expected body text, got %q", p.Text)
	}
	if !strings.Contains(p.Markdown, "# Ship faster") || !strings.Contains(p.Markdown, "**teams**") {
		t.Errorf("unexpected markdown %q", p.Markdown)
	}

	want := []string{"https://acme.test/pricing", "https://acme.test/about", "https://other.test/x"}
	if len(p.Links) != len(want) {
		t.Fatalf("expected links %v, got %v", want, p.Links)
	}
	for i := range want {
		if p.Links[i] != want[i] {
			t.Errorf("link %d: expected %s, got %s", i, want[i], p.Links[i])
		}
	}
}

func TestParsePage_Fallbacks(t *testing.T) {
	p, err := ParsePage("https://acme.test/", []byte(`<html><head><meta property="og:title" content="Acme"><meta property="og:description" content="OG desc"></head><body></body></html>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "Acme" || p.Description != "OG desc" {
		t.Errorf("expected open graph fallbacks, got %q / %q", p.Title, p.Description)
	}

	p, err = ParsePage("https://bare.test/", []byte(`<p>hello</p>`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Title != "https://bare.test/" {
		t.Errorf("expected URL as title fallback, got %q", p.Title)
	}
}

func TestFetchPage_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(companyHTML))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/challenge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher := newTestFetcher(t, FetchConfig{})
	ctx := context.Background()

	p, err := fetcher.FetchPage(ctx, ts.URL+"/ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.URL != ts.URL+"/ok" {
		t.Errorf("unexpected page url %s", p.URL)
	}

	if _, err := fetcher.FetchPage(ctx, ts.URL+"/gone"); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("expected not found for 410, got %v", err)
	}
	if _, err := fetcher.FetchPage(ctx, ts.URL+"/broken"); !errors.Is(err, fault.ErrTransientFetch) {
		t.Errorf("expected transient error for 502, got %v", err)
	}

	_, err = fetcher.FetchPage(ctx, ts.URL+"/challenge")
	if !errors.Is(err, ErrBlocked) || !errors.Is(err, fault.ErrTransientFetch) {
		t.Errorf("expected blocked transient error, got %v", err)
	}
}
