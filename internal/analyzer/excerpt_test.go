package analyzer

import (
	"strings"
	"testing"
)

// benchmarkContent builds page-like text of at least size bytes.
func benchmarkContent(size int) string {
	sb := strings.Builder{}
	sb.Grow(size)

	paragraphs := []string{
		"Acme helps project teams plan work across departments. Boards, timelines and workload views keep everyone aligned.",
		"Pricing starts with a free plan for small teams. The business tier adds portfolios, goals and advanced reporting.",
		"Customers praise the clean interface and fast onboarding. Some reviewers mention a steep price for larger teams.",
		"Integrations cover Slack, Google Drive and Salesforce. A public API and webhooks support custom automation.",
		"The company was founded in 2008 and is headquartered in San Francisco. It serves more than 100,000 organizations.",
	}

	for sb.Len() < size {
		for _, p := range paragraphs {
			sb.WriteString(p)
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func TestExcerpt_FitsUnchanged(t *testing.T) {
	text := "Short page. Nothing to cut."
	if got := Excerpt(text, []string{"pricing"}, 100); got != text {
		t.Errorf("expected text unchanged, got %q", got)
	}
	if got := Excerpt(text, nil, 0); got != text {
		t.Errorf("expected no limit for maxChars 0, got %q", got)
	}
}

func TestExcerpt_KeepsLeadAndTermSentences(t *testing.T) {
	text := "Acme builds tools. It was founded in 2010. Offices in Berlin. We love cats. " +
		"Pricing starts at $10 per seat. Dogs are nice too. Our pricing is simple."

	got := Excerpt(text, []string{"Pricing"}, 120)
	want := "Acme builds tools. It was founded in 2010. Offices in Berlin. Pricing starts at $10 per seat. Our pricing is simple."
	if got != want {
		t.Errorf("unexpected excerpt:\n got: %q\nwant: %q", got, want)
	}
}

func TestExcerpt_NeverExceedsLimit(t *testing.T) {
	content := benchmarkContent(20 * 1024)
	for _, limit := range []int{50, 500, 4000, 12000} {
		got := Excerpt(content, []string{"pricing", "customers"}, limit)
		if len(got) > limit {
			t.Errorf("limit %d: excerpt is %d bytes", limit, len(got))
		}
		if got == "" {
			t.Errorf("limit %d: empty excerpt", limit)
		}
	}
}

func TestExcerpt_TruncatesSingleSentence(t *testing.T) {
	got := Excerpt(strings.Repeat("a", 100), nil, 10)
	if got != strings.Repeat("a", 10) {
		t.Errorf("expected 10 bytes, got %q", got)
	}
	if got := truncate("héllo", 2); got != "h" {
		t.Errorf("expected cut on rune boundary, got %q", got)
	}
}

func TestSplitIntoSentencesBasic(t *testing.T) {
	sentences := splitIntoSentences("First sentence. Second one!  Third? trailing words")

	want := []string{"First sentence.", "Second one!", "Third?", "trailing words"}
	if len(sentences) != len(want) {
		t.Fatalf("expected %d sentences, got %d", len(want), len(sentences))
	}
	for i, s := range sentences {
		if s.text != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], s.text)
		}
		if s.index != i {
			t.Errorf("sentence %d: index %d", i, s.index)
		}
	}
}

func BenchmarkExcerpt_SmallLimit(b *testing.B) {
	content := benchmarkContent(100 * 1024) // 100KB
	terms := []string{"pricing", "customers", "integrations", "founded"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		Excerpt(content, terms, 2000)
	}
}

func BenchmarkExcerpt_DefaultLimit(b *testing.B) {
	content := benchmarkContent(100 * 1024) // 100KB
	terms := []string{"pricing", "customers", "integrations", "founded"}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		Excerpt(content, terms, DefaultMaxContentChars)
	}
}

func BenchmarkSplitIntoSentences(b *testing.B) {
	content := benchmarkContent(50 * 1024) // 50KB

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		splitIntoSentences(content)
	}
}
