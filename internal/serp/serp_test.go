package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/pkg/httpclient"
)

func newClient(t *testing.T) *httpclient.Client {
	t.Helper()
	c, err := httpclient.New(httpclient.Config{})
	require.NoError(t, err)
	return c
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   Hit
		want Hit
		ok   bool
	}{
		{
			name: "strips highlighting",
			in:   Hit{Title: "Best <b>PM</b> tools", URL: "https://example.com/a", Snippet: "Compare &amp; <i>choose</i>"},
			want: Hit{Title: "Best PM tools", URL: "https://example.com/a", Snippet: "Compare & choose"},
			ok:   true,
		},
		{
			name: "missing title falls back to host",
			in:   Hit{URL: " https://asana.com "},
			want: Hit{Title: "asana.com", URL: "https://asana.com"},
			ok:   true,
		},
		{name: "empty url", in: Hit{Title: "x"}, ok: false},
		{name: "relative url", in: Hit{Title: "x", URL: "/path"}, ok: false},
		{name: "non-http scheme", in: Hit{Title: "x", URL: "ftp://example.com"}, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := clean(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func googleServer(t *testing.T, total int, pages *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("key"))
		assert.Equal(t, "cx", q.Get("cx"))
		*pages = append(*pages, q.Get("start"))

		start := 1
		if s := q.Get("start"); s != "" {
			start, _ = strconv.Atoi(s)
		}
		num, _ := strconv.Atoi(q.Get("num"))

		type item struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		}
		var items []item
		for i := start; i < start+num && i <= total; i++ {
			items = append(items, item{Title: fmt.Sprintf("r%d", i), Link: fmt.Sprintf("https://example.com/%d", i), Snippet: "s"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
}

func TestGooglePSE_Paginates(t *testing.T) {
	var pages []string
	srv := googleServer(t, 100, &pages)
	defer srv.Close()

	g := NewGooglePSE("key", "cx", srv.URL, newClient(t), nil)
	hits, err := g.Search(context.Background(), "pm software", 25)
	require.NoError(t, err)

	require.Len(t, hits, 25)
	assert.Equal(t, "r1", hits[0].Title)
	assert.Equal(t, "r25", hits[24].Title)
	assert.Equal(t, []string{"", "11", "21"}, pages)
}

func TestGooglePSE_StopsOnShortPage(t *testing.T) {
	var pages []string
	srv := googleServer(t, 3, &pages)
	defer srv.Close()

	g := NewGooglePSE("key", "cx", srv.URL, newClient(t), nil)
	hits, err := g.Search(context.Background(), "pm software", 30)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Len(t, pages, 1)
}

func TestGooglePSE_DropsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"title":"ok","link":"https://a.example"},{"title":"bad","link":""},{"title":"ok2","link":"http://b.example"}]}`)
	}))
	defer srv.Close()

	g := NewGooglePSE("key", "cx", srv.URL, newClient(t), nil)
	hits, err := g.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "ok2", hits[1].Title)
}

func TestGooglePSE_FirstPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGooglePSE("key", "cx", srv.URL, newClient(t), nil)
	_, err := g.Search(context.Background(), "q", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrTransientFetch))

	var se *httpclient.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestGooglePSE_LaterPageErrorKeepsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var items []map[string]string
		for i := 0; i < 10; i++ {
			items = append(items, map[string]string{"title": "t", "link": fmt.Sprintf("https://e.example/%d", i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer srv.Close()

	g := NewGooglePSE("key", "cx", srv.URL, newClient(t), nil)
	hits, err := g.Search(context.Background(), "q", 20)
	require.NoError(t, err)
	assert.Len(t, hits, 10)
}

func TestBrave_Search(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brave-key", r.Header.Get("X-Subscription-Token"))
		assert.Equal(t, "20", r.URL.Query().Get("count"))
		offsets = append(offsets, r.URL.Query().Get("offset"))

		var results []map[string]string
		for i := 0; i < 20; i++ {
			results = append(results, map[string]string{
				"title":       "Go <strong>Docs</strong>",
				"url":         fmt.Sprintf("https://go.example/%s/%d", r.URL.Query().Get("offset"), i),
				"description": "Go programming language",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"web": map[string]any{"results": results}})
	}))
	defer srv.Close()

	b := NewBrave("brave-key", srv.URL, newClient(t), nil)
	hits, err := b.Search(context.Background(), "golang", 30)
	require.NoError(t, err)
	require.Len(t, hits, 30)
	assert.Equal(t, "Go Docs", hits[0].Title)
	assert.Equal(t, []string{"", "1"}, offsets)
}

func TestNew(t *testing.T) {
	c := newClient(t)

	p, err := New(Config{Provider: "google_pse", APIKey: "k", EngineID: "cx"}, c)
	require.NoError(t, err)
	assert.Equal(t, "google_pse", p.Name())

	p, err = New(Config{Provider: "brave", APIKey: "k"}, c)
	require.NoError(t, err)
	assert.Equal(t, "brave", p.Name())

	_, err = New(Config{Provider: "google_pse", APIKey: "k"}, c)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))

	_, err = New(Config{Provider: "bing", APIKey: "k"}, c)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))

	_, err = New(Config{Provider: "brave"}, c)
	assert.True(t, errors.Is(err, fault.ErrConfiguration))
}
