// Package analyzer turns page text and collected items into analysis through
// an LLM provider. Every call returns an error instead of a placeholder; the
// caller decides what stands in for a failed analysis.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/llm"
	"github.com/FranksOps/rival/internal/metrics"
	"github.com/FranksOps/rival/internal/model"
	"github.com/FranksOps/rival/pkg/ratelimit"
)

// DefaultMaxContentChars bounds the page text sent in one prompt.
const DefaultMaxContentChars = 12000

const systemPrompt = "You are an expert business analyst. Answer in JSON."

// profileTerms steer the excerpter toward sentences a profile needs.
var profileTerms = []string{
	"founded", "headquarter", "pricing", "price", "plan", "customers",
	"feature", "integration", "platform", "team", "enterprise", "partner",
	"funding", "reviews", "trusted by",
}

// Content is the text of one page to analyze.
type Content struct {
	Title       string
	URL         string
	Description string
	Text        string
}

// Config configures an Analyzer.
type Config struct {
	// Limiter is shared by every call of the Analyzer; nil means unlimited.
	Limiter *ratelimit.Limiter
	// MaxContentChars caps page text per prompt (0 = DefaultMaxContentChars).
	MaxContentChars int
	Logger          *slog.Logger
}

// Analyzer asks a language model for summaries, competitor profiles and
// market synthesis. It is safe for concurrent use.
type Analyzer struct {
	provider llm.Provider
	limiter  *ratelimit.Limiter
	maxChars int
	logger   *slog.Logger
}

// New creates an Analyzer over provider.
func New(provider llm.Provider, cfg Config) *Analyzer {
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		provider: provider,
		limiter:  cfg.Limiter,
		maxChars: cfg.MaxContentChars,
		logger:   cfg.Logger,
	}
}

// Summarize returns two or three sentences of insight about c.
func (a *Analyzer) Summarize(ctx context.Context, c Content) (string, error) {
	text := Excerpt(c.Text, nil, a.maxChars)
	if text == "" {
		text = c.Description
	}
	prompt := fmt.Sprintf(`Analyze this content and give the key business insights.

Title: %s
URL: %s
Content: %s

Return a JSON object of this shape:
{"analysis": "2-3 sentences of insights"}`, c.Title, c.URL, text)

	obj, err := a.ask(ctx, "summarize", prompt)
	if err != nil {
		return "", err
	}
	analysis := obj.str("analysis")
	if analysis == "" {
		return "", fault.Newf(fault.KindAnalyzer, "summarize", "%s: response has no analysis", c.URL)
	}
	return analysis, nil
}

// StructuredProfile extracts a competitor profile from the site's content.
// Fields the model leaves out or gets the type wrong for are defaulted, so
// only an unusable response is an error.
func (a *Analyzer) StructuredProfile(ctx context.Context, c Content) (model.CompetitorProfile, error) {
	text := Excerpt(c.Text, profileTerms, a.maxChars)
	prompt := fmt.Sprintf(`Analyze this company website.

Title: %s
URL: %s
Description: %s
Content: %s

Return a JSON object of this shape. Use null for anything the content does not say.
%s`, c.Title, c.URL, c.Description, text, profileSchema)

	obj, err := a.ask(ctx, "profile", prompt)
	if err != nil {
		return model.CompetitorProfile{}, err
	}
	p := decodeProfile(obj)
	if p.CompanyInfo.Website == "" {
		p.CompanyInfo.Website = c.URL
	}
	if p.CompanyInfo.Name == "" {
		p.CompanyInfo.Name = c.Title
	}
	p.FillDefaults()
	return p, nil
}

// SWOT builds a SWOT analysis of the market described by the query, its
// search items and the competitors that were profiled.
func (a *Analyzer) SWOT(ctx context.Context, query string, items []model.SearchItem, competitors []model.CompetitorItem) (model.SWOT, error) {
	prompt := fmt.Sprintf(`Based on the following data, write a SWOT analysis.

%s
Return a JSON object of this shape:
{"strengths": ["..."], "weaknesses": ["..."], "opportunities": ["..."], "threats": ["..."]}`,
		marketBrief(query, items, competitors, false))

	obj, err := a.ask(ctx, "swot", prompt)
	if err != nil {
		return model.SWOT{}, err
	}
	s := model.SWOT{
		Strengths:     obj.list("strengths"),
		Weaknesses:    obj.list("weaknesses"),
		Opportunities: obj.list("opportunities"),
		Threats:       obj.list("threats"),
	}
	if len(s.Strengths)+len(s.Weaknesses)+len(s.Opportunities)+len(s.Threats) == 0 {
		return model.SWOT{}, fault.Newf(fault.KindAnalyzer, "swot", "response has no points")
	}
	for _, l := range []*[]string{&s.Strengths, &s.Weaknesses, &s.Opportunities, &s.Threats} {
		if *l == nil {
			*l = []string{}
		}
	}
	return s, nil
}

// Compare lists the competitive advantages, or disadvantages when
// advantages is false, visible across the competitors.
func (a *Analyzer) Compare(ctx context.Context, query string, items []model.SearchItem, competitors []model.CompetitorItem, advantages bool) ([]string, error) {
	op := "advantages"
	if !advantages {
		op = "disadvantages"
	}
	prompt := fmt.Sprintf(`Based on the following data, list the competitive %s of the competitors.

%s
Return a JSON object of this shape:
{"points": ["..."]}`, op, marketBrief(query, items, competitors, true))

	obj, err := a.ask(ctx, op, prompt)
	if err != nil {
		return nil, err
	}
	points := obj.list("points")
	if len(points) == 0 {
		return nil, fault.Newf(fault.KindAnalyzer, op, "response has no points")
	}
	return points, nil
}

// ask sends one JSON-mode prompt under the shared limiter and decodes the
// reply. Every failure is a KindAnalyzer fault.
func (a *Analyzer) ask(ctx context.Context, op, prompt string) (object, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fault.New(fault.KindAnalyzer, op, fmt.Errorf("rate limiter: %w", err))
	}

	start := time.Now()
	raw, err := a.provider.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt, JSON: true})
	if err == nil {
		var obj object
		if obj, err = parseObject(raw); err == nil {
			metrics.RecordAnalyzerCall(op, time.Since(start), nil)
			return obj, nil
		}
		err = fmt.Errorf("decode response: %w", err)
	}
	metrics.RecordAnalyzerCall(op, time.Since(start), err)
	a.logger.Warn("analyzer call failed", "op", op, "provider", a.provider.Name(), "model", a.provider.Model(), "err", err)
	return nil, fault.New(fault.KindAnalyzer, op, err)
}
