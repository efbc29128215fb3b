package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/FranksOps/rival/internal/fault"
	"github.com/FranksOps/rival/internal/llm"
	"github.com/FranksOps/rival/internal/model"
)

type fakeProvider struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []llm.Request
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-1" }

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeProvider) lastPrompt(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("provider was never called")
	}
	return f.requests[len(f.requests)-1].Prompt
}

func TestSummarize(t *testing.T) {
	p := &fakeProvider{reply: `{"analysis": "Asana leads mid-market work management."}`}
	a := New(p, Config{})

	got, err := a.Summarize(context.Background(), Content{Title: "Asana", URL: "https://asana.com", Text: "Work management for teams."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Asana leads mid-market work management." {
		t.Errorf("unexpected analysis %q", got)
	}

	req := p.requests[0]
	if !req.JSON || req.System == "" {
		t.Errorf("expected a JSON-mode request with a system prompt, got %+v", req)
	}
	if !strings.Contains(req.Prompt, "Work management for teams.") {
		t.Errorf("prompt is missing the page text: %s", req.Prompt)
	}
}

func TestSummarize_FencedReply(t *testing.T) {
	p := &fakeProvider{reply: "Here you go:\n```json\n{\"analysis\": \"Fine.\"}\n```"}
	got, err := New(p, Config{}).Summarize(context.Background(), Content{Title: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Fine." {
		t.Errorf("unexpected analysis %q", got)
	}
}

func TestSummarize_Failures(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"provider error", "", errors.New("429 too many requests")},
		{"no json", "I cannot help with that.", nil},
		{"missing key", `{"summary": "wrong key"}`, nil},
		{"wrong type", `{"analysis": ["a", "b"]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(&fakeProvider{reply: tt.reply, err: tt.err}, Config{})
			_, err := a.Summarize(context.Background(), Content{Title: "t"})
			if !errors.Is(err, fault.ErrAnalyzer) {
				t.Errorf("expected analyzer fault, got %v", err)
			}
		})
	}
}

func TestSummarize_CancelledContext(t *testing.T) {
	p := &fakeProvider{reply: `{"analysis": "x"}`}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(p, Config{}).Summarize(ctx, Content{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(p.requests) != 0 {
		t.Errorf("provider should not be called, got %d calls", len(p.requests))
	}
}

func TestStructuredProfile_Lenient(t *testing.T) {
	p := &fakeProvider{reply: `{
		"company_info": {"name": "Asana", "industry": "SaaS", "founded_year": "2008", "founders": "Dustin Moskovitz"},
		"market_position": {"target_audience": ["Teams", 42, null], "brand_reputation": null},
		"product_service": {"features": "Boards", "pricing": {"premium": 10.99, "enterprise": {"custom": true}}},
		"online_presence": {"social_media": ["twitter"]},
		"tech_stack": "React",
		"extra_section": {"ignored": true}
	}`}

	prof, err := New(p, Config{}).StructuredProfile(context.Background(), Content{Title: "Asana · Manage work", URL: "https://asana.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if prof.CompanyInfo.Name != "Asana" || prof.CompanyInfo.Website != "https://asana.com" {
		t.Errorf("unexpected company info: %+v", prof.CompanyInfo)
	}
	if prof.CompanyInfo.FoundedYear == nil || *prof.CompanyInfo.FoundedYear != 2008 {
		t.Errorf("expected founded year 2008, got %v", prof.CompanyInfo.FoundedYear)
	}
	if len(prof.CompanyInfo.Founders) != 1 {
		t.Errorf("expected a lone founder string to become a list, got %v", prof.CompanyInfo.Founders)
	}
	if got := prof.MarketPosition.TargetAudience; len(got) != 2 || got[1] != "42" {
		t.Errorf("unexpected target audience %v", got)
	}
	if prof.MarketPosition.BrandReputation != model.Unknown {
		t.Errorf("expected null reputation to default, got %q", prof.MarketPosition.BrandReputation)
	}
	if prof.ProductService.Pricing["premium"] != "10.99" {
		t.Errorf("unexpected pricing %v", prof.ProductService.Pricing)
	}
	if _, ok := prof.ProductService.Pricing["enterprise"]; ok {
		t.Errorf("nested pricing value should be dropped: %v", prof.ProductService.Pricing)
	}
	if prof.OnlinePresence.SocialMedia == nil || len(prof.OnlinePresence.SocialMedia) != 0 {
		t.Errorf("expected empty social media map, got %v", prof.OnlinePresence.SocialMedia)
	}
	if prof.TechStack.PlatformDetails != model.Unknown || prof.TechStack.Tools == nil {
		t.Errorf("expected defaulted tech stack, got %+v", prof.TechStack)
	}
	if prof.CustomerSentiment.PraisePoints == nil {
		t.Error("missing section should have empty lists")
	}
}

func TestStructuredProfile_DefaultsName(t *testing.T) {
	p := &fakeProvider{reply: `{}`}
	prof, err := New(p, Config{}).StructuredProfile(context.Background(), Content{Title: "Trello", URL: "https://trello.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prof.CompanyInfo.Name != "Trello" || prof.CompanyInfo.Industry != model.Unknown {
		t.Errorf("unexpected company info: %+v", prof.CompanyInfo)
	}
}

func TestStructuredProfile_Unusable(t *testing.T) {
	p := &fakeProvider{reply: `{"company_info": `}
	if _, err := New(p, Config{}).StructuredProfile(context.Background(), Content{}); !errors.Is(err, fault.ErrAnalyzer) {
		t.Errorf("expected analyzer fault, got %v", err)
	}
}

func TestStructuredProfile_ExcerptsLongText(t *testing.T) {
	p := &fakeProvider{reply: `{}`}
	a := New(p, Config{MaxContentChars: 500})
	text := benchmarkContent(10 * 1024)

	if _, err := a.StructuredProfile(context.Background(), Content{Text: text}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(p.lastPrompt(t)); got > 500+len(profileSchema)+300 {
		t.Errorf("prompt was not shortened: %d bytes", got)
	}
}

func sampleCompetitors() []model.CompetitorItem {
	ok := model.CompetitorItem{Identifier: "asana.com", Status: model.CompetitorOK}
	ok.Profile.CompanyInfo.Name = "Asana"
	ok.Profile.ProductService.Differentiators = []string{"Goals"}

	failed := model.CompetitorItem{
		Identifier: "ghost.example",
		Status:     model.CompetitorFetchFailed,
		Profile:    model.PlaceholderProfile("GhostCorp", ""),
	}
	return []model.CompetitorItem{ok, failed}
}

func TestSWOT(t *testing.T) {
	p := &fakeProvider{reply: `{"strengths": ["Large market"], "threats": "Consolidation"}`}
	items := []model.SearchItem{
		{Title: "Top PM tools", Snippet: "A roundup", Analysis: "Crowded market.", Status: model.SearchOK},
		{Title: "Another", Analysis: model.AnalysisUnavailable, Status: model.SearchAnalysisUnavailable},
	}

	s, err := New(p, Config{}).SWOT(context.Background(), "project management software", items, sampleCompetitors())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Strengths) != 1 || len(s.Threats) != 1 {
		t.Errorf("unexpected swot %+v", s)
	}
	if s.Weaknesses == nil || s.Opportunities == nil {
		t.Errorf("missing sections should be empty lists: %+v", s)
	}

	prompt := p.lastPrompt(t)
	if !strings.Contains(prompt, "Competitor: Asana") {
		t.Errorf("prompt is missing the profiled competitor: %s", prompt)
	}
	if strings.Contains(prompt, "GhostCorp") || strings.Contains(prompt, model.AnalysisUnavailable) {
		t.Errorf("prompt should leave out placeholders: %s", prompt)
	}
}

func TestSWOT_Empty(t *testing.T) {
	p := &fakeProvider{reply: `{"strengths": []}`}
	if _, err := New(p, Config{}).SWOT(context.Background(), "q", nil, nil); !errors.Is(err, fault.ErrAnalyzer) {
		t.Errorf("expected analyzer fault, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	p := &fakeProvider{reply: `{"points": ["Strong brand", "Wide integrations"]}`}
	a := New(p, Config{})

	points, err := a.Compare(context.Background(), "q", nil, sampleCompetitors(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Errorf("unexpected points %v", points)
	}
	prompt := p.lastPrompt(t)
	if !strings.Contains(prompt, "competitive disadvantages") || !strings.Contains(prompt, "Differentiators: Goals") {
		t.Errorf("unexpected prompt: %s", prompt)
	}

	p.reply = `{"points": []}`
	if _, err := a.Compare(context.Background(), "q", nil, nil, true); !errors.Is(err, fault.ErrAnalyzer) {
		t.Errorf("expected analyzer fault for empty points, got %v", err)
	}
}
