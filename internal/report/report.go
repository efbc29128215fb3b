// Package report turns a collection into a market report and renders it.
package report

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/rival/internal/model"
)

// Synthesizer writes the cross-item analysis of a report.
type Synthesizer interface {
	SWOT(ctx context.Context, query string, items []model.SearchItem, competitors []model.CompetitorItem) (model.SWOT, error)
	Compare(ctx context.Context, query string, items []model.SearchItem, competitors []model.CompetitorItem, advantages bool) ([]string, error)
}

// AssemblerConfig configures an Assembler.
type AssemblerConfig struct {
	// Timeout bounds each synthesis call (default 60s).
	Timeout time.Duration
	Logger  *slog.Logger
}

// Assembler builds reports from collections.
type Assembler struct {
	synth   Synthesizer
	timeout time.Duration
	logger  *slog.Logger
}

// NewAssembler creates an Assembler. A nil synth yields reports whose
// synthesis is marked unavailable.
func NewAssembler(synth Synthesizer, cfg AssemblerConfig) *Assembler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assembler{synth: synth, timeout: cfg.Timeout, logger: cfg.Logger}
}

// Assemble adds a SWOT analysis and, when competitors were requested, a
// comparison to res. Synthesis failures degrade to "Analysis not available"
// entries; Assemble itself never fails.
func (a *Assembler) Assemble(ctx context.Context, res *model.CollectionResult) *model.Report {
	rep := &model.Report{Collection: res, SWOT: model.UnavailableSWOT()}
	withComparison := len(res.CompetitorItems) > 0
	if withComparison {
		rep.Comparison = &model.Comparison{
			Competitors:              res.CompetitorItems,
			CompetitiveAdvantages:    []string{model.AnalysisUnavailable},
			CompetitiveDisadvantages: []string{model.AnalysisUnavailable},
		}
	}
	if a.synth == nil {
		return rep
	}

	logger := a.logger.With("request_id", res.RequestID)
	var g errgroup.Group
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		swot, err := a.synth.SWOT(cctx, res.Query, res.SearchItems, res.CompetitorItems)
		if err != nil {
			logger.Warn("swot analysis unavailable", "err", err)
			return nil
		}
		rep.SWOT = swot
		return nil
	})
	if withComparison {
		compare := func(advantages bool, dst *[]string) func() error {
			return func() error {
				cctx, cancel := context.WithTimeout(ctx, a.timeout)
				defer cancel()
				points, err := a.synth.Compare(cctx, res.Query, res.SearchItems, res.CompetitorItems, advantages)
				if err != nil {
					logger.Warn("competitive analysis unavailable", "advantages", advantages, "err", err)
					return nil
				}
				*dst = points
				return nil
			}
		}
		g.Go(compare(true, &rep.Comparison.CompetitiveAdvantages))
		g.Go(compare(false, &rep.Comparison.CompetitiveDisadvantages))
	}
	_ = g.Wait()
	return rep
}

// Summary contains aggregated counts about one collection.
type Summary struct {
	Query               string
	RequestID           string
	CollectedAt         time.Time
	SearchItems         int
	SearchFromCache     bool
	SearchError         string
	AnalysisUnavailable int
	Competitors         int
	CompetitorsCached   int
	CompetitorsFresh    int
	CompetitorsFailed   int
	FailuresByStatus    map[model.CompetitorStatus]int
	LastCacheUpdate     *time.Time
}

// GenerateSummary counts the items of res by provenance and status.
func GenerateSummary(res *model.CollectionResult) Summary {
	s := Summary{
		Query:            res.Query,
		RequestID:        res.RequestID,
		CollectedAt:      res.CollectedAt,
		SearchItems:      len(res.SearchItems),
		SearchFromCache:  res.DataSourceInfo.SearchResultsFromCache,
		SearchError:      res.DataSourceInfo.SearchError,
		Competitors:      len(res.CompetitorItems),
		FailuresByStatus: make(map[model.CompetitorStatus]int),
		LastCacheUpdate:  res.DataSourceInfo.LastCacheUpdate,
	}
	for _, it := range res.SearchItems {
		if it.Status != model.SearchOK {
			s.AnalysisUnavailable++
		}
	}
	for _, c := range res.CompetitorItems {
		switch c.Provenance.Source {
		case model.SourceCached:
			s.CompetitorsCached++
		case model.SourceNew:
			s.CompetitorsFresh++
		default:
			s.CompetitorsFailed++
			s.FailuresByStatus[c.Status]++
		}
	}
	return s
}
