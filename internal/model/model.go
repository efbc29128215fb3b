// Package model holds the request, item and report types shared by the
// collector, the report assembler and the API.
package model

import (
	"strings"
	"time"

	"github.com/FranksOps/rival/internal/fault"
)

// Request limits.
const (
	DefaultNumResults = 10
	MaxNumResults     = 100
)

// AnalysisUnavailable replaces any analysis text the analyzer failed to produce.
const AnalysisUnavailable = "Analysis not available"

// Source says where an item came from.
type Source string

const (
	SourceCached Source = "cached"
	SourceNew    Source = "new"
	SourceError  Source = "error"
)

// Provenance is attached to every item returned to a caller.
type Provenance struct {
	Source      Source    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}

// SearchStatus reports whether a search item's analysis is real.
type SearchStatus string

const (
	SearchOK                  SearchStatus = "ok"
	SearchAnalysisUnavailable SearchStatus = "analysis_unavailable"
)

// SearchItem is one analyzed search hit.
type SearchItem struct {
	Title      string       `json:"title"`
	URL        string       `json:"url"`
	Snippet    string       `json:"snippet"`
	Analysis   string       `json:"analysis"`
	Status     SearchStatus `json:"status"`
	Provenance Provenance   `json:"provenance"`
}

// CompetitorStatus is the outcome of building one competitor profile.
type CompetitorStatus string

const (
	CompetitorOK             CompetitorStatus = "ok"
	CompetitorNotFound       CompetitorStatus = "not_found"
	CompetitorFetchFailed    CompetitorStatus = "fetch_failed"
	CompetitorAnalysisFailed CompetitorStatus = "analysis_failed"
)

// CompetitorItem is the profile of one requested competitor, or the
// placeholder that stands in for it.
type CompetitorItem struct {
	Identifier string            `json:"identifier"`
	Website    string            `json:"website,omitempty"`
	Status     CompetitorStatus  `json:"status"`
	Error      string            `json:"error,omitempty"`
	Profile    CompetitorProfile `json:"profile"`
	Provenance Provenance        `json:"provenance"`
}

// OK reports whether the item carries a real profile.
func (c CompetitorItem) OK() bool { return c.Status == CompetitorOK }

// DataSourceInfo summarizes the provenance of a whole collection.
type DataSourceInfo struct {
	SearchResultsFromCache bool       `json:"search_results_from_cache"`
	SearchError            string     `json:"search_error,omitempty"`
	CompetitorsFromCache   []string   `json:"competitors_from_cache"`
	FreshCompetitors       []string   `json:"fresh_competitors"`
	FailedCompetitors      []string   `json:"failed_competitors"`
	LastCacheUpdate        *time.Time `json:"last_cache_update,omitempty"`
}

// CollectionRequest asks for search results on Query and a profile of each
// competitor.
type CollectionRequest struct {
	Query       string   `json:"query"`
	NumResults  int      `json:"num_results"`
	Competitors []string `json:"competitors,omitempty"`
}

// Normalize applies defaults and validates r. A zero NumResults becomes
// DefaultNumResults. Competitor entries are trimmed but never deduplicated.
func (r *CollectionRequest) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return fault.Newf(fault.KindInvalid, "validate request", "query is required")
	}
	if r.NumResults == 0 {
		r.NumResults = DefaultNumResults
	}
	if r.NumResults < 0 || r.NumResults > MaxNumResults {
		return fault.Newf(fault.KindInvalid, "validate request", "num_results must be between 1 and %d, got %d", MaxNumResults, r.NumResults)
	}
	for i, c := range r.Competitors {
		c = strings.TrimSpace(c)
		if c == "" {
			return fault.Newf(fault.KindInvalid, "validate request", "competitor %d is empty", i)
		}
		r.Competitors[i] = c
	}
	return nil
}

// CollectionResult is built once per request and never persisted.
type CollectionResult struct {
	RequestID       string           `json:"request_id"`
	Query           string           `json:"query"`
	SearchItems     []SearchItem     `json:"search_items"`
	CompetitorItems []CompetitorItem `json:"competitor_items"`
	DataSourceInfo  DataSourceInfo   `json:"data_source_info"`
	CollectedAt     time.Time        `json:"collected_at"`
}

// SWOT is a strengths / weaknesses / opportunities / threats breakdown.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// UnavailableSWOT is used when the analyzer could not produce one.
func UnavailableSWOT() SWOT {
	return SWOT{
		Strengths:     []string{AnalysisUnavailable},
		Weaknesses:    []string{AnalysisUnavailable},
		Opportunities: []string{AnalysisUnavailable},
		Threats:       []string{AnalysisUnavailable},
	}
}

// Comparison sets the competitors against the searched market.
type Comparison struct {
	Competitors              []CompetitorItem `json:"competitors"`
	CompetitiveAdvantages    []string         `json:"competitive_advantages"`
	CompetitiveDisadvantages []string         `json:"competitive_disadvantages"`
}

// Report is a collection plus the synthesis built on top of it.
type Report struct {
	Collection *CollectionResult `json:"collection"`
	SWOT       SWOT              `json:"swot_analysis"`
	Comparison *Comparison       `json:"comparison"`
}
