package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"github.com/FranksOps/rival/internal/fault"
)

// ErrBlocked marks a page that answered with a bot-protection challenge.
var ErrBlocked = errors.New("blocked by bot protection")

// Page is the readable content of an HTML page.
type Page struct {
	URL         string
	Title       string
	Description string
	// Text is the visible body text with whitespace collapsed.
	Text     string
	Markdown string
	// Links are the absolute http(s) targets of the page's anchors.
	Links []string
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// FetchPage fetches targetURL and extracts its content. Failures carry a
// fault kind: KindNotFound for 404 and 410, KindTransientFetch wrapping
// ErrBlocked for a bot challenge, and KindTransientFetch for everything else.
func (f *Fetcher) FetchPage(ctx context.Context, targetURL string) (*Page, error) {
	res, err := f.Fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(res); err != nil {
		return nil, err
	}

	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = targetURL
	}
	return ParsePage(pageURL, res.Body)
}

func checkResponse(res *Response) error {
	switch {
	case res.BlockedBy != "":
		return fault.New(fault.KindTransientFetch, "fetch page", fmt.Errorf("%s: %w (%s)", res.URL, ErrBlocked, res.BlockedBy))
	case res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone:
		return fault.Newf(fault.KindNotFound, "fetch page", "%s: status %d", res.URL, res.StatusCode)
	case res.StatusCode < 200 || res.StatusCode > 299:
		return fault.Newf(fault.KindTransientFetch, "fetch page", "%s: status %d", res.URL, res.StatusCode)
	}
	return nil
}

// ParsePage extracts title, description, text, markdown and links from an
// HTML document served at pageURL.
func ParsePage(pageURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fault.New(fault.KindTransientFetch, "parse page", err)
	}

	p := &Page{URL: pageURL}

	p.Title = collapse(doc.Find("title").First().Text())
	if p.Title == "" {
		p.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	if p.Title == "" {
		p.Title = pageURL
	}
	p.Description = metaContent(doc, `meta[name="description"]`)
	if p.Description == "" {
		p.Description = metaContent(doc, `meta[property="og:description"]`)
	}

	p.Links = extractLinks(pageURL, doc)

	doc.Find("script, style, noscript, svg, iframe, template").Remove()
	p.Text = collapse(doc.Find("body").Text())

	if html, err := doc.Html(); err == nil {
		if md, err := mdConverter.ConvertString(html, converter.WithDomain(pageURL)); err == nil {
			p.Markdown = strings.TrimSpace(md)
		}
	}
	if p.Markdown == "" {
		p.Markdown = p.Text
	}

	return p, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return collapse(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractLinks(pageURL string, doc *goquery.Document) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(u)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}
