package analyzer

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// leadSentences are kept ahead of any term-matching sentence; the opening of
// a page usually says what the company does.
const leadSentences = 3

type sentence struct {
	text  string
	lower string
	index int
	score int
}

// Excerpt shortens text to at most maxChars bytes. It keeps the opening
// sentences, then the sentences mentioning terms most often, then any others
// that still fit, and joins them in their original order. Text that already
// fits is returned unchanged.
func Excerpt(text string, terms []string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	sentences := splitIntoSentences(text)
	lowerTerms := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			lowerTerms = append(lowerTerms, t)
		}
	}
	for i := range sentences {
		for _, t := range lowerTerms {
			sentences[i].score += strings.Count(sentences[i].lower, t)
		}
	}

	ranked := slices.Clone(sentences)
	slices.SortStableFunc(ranked, func(a, b sentence) int {
		aLead, bLead := a.index < leadSentences, b.index < leadSentences
		switch {
		case aLead && !bLead:
			return -1
		case bLead && !aLead:
			return 1
		}
		return b.score - a.score
	})

	var picked []sentence
	size := 0
	for _, s := range ranked {
		need := len(s.text)
		if len(picked) > 0 {
			need++
		}
		if size+need > maxChars {
			continue
		}
		picked = append(picked, s)
		size += need
	}
	if len(picked) == 0 {
		return truncate(text, maxChars)
	}

	slices.SortFunc(picked, func(a, b sentence) int { return a.index - b.index })
	var sb strings.Builder
	sb.Grow(size)
	for i, s := range picked {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.text)
	}
	return sb.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// splitIntoSentences breaks text after '.', '!' and '?'. Empty fragments
// are dropped.
func splitIntoSentences(text string) []sentence {
	if len(text) == 0 {
		return nil
	}

	// Roughly one sentence per 50 bytes.
	sentences := make([]sentence, 0, max(len(text)/50, 1))
	add := func(raw string) {
		orig := strings.TrimSpace(raw)
		if orig == "" {
			return
		}
		sentences = append(sentences, sentence{
			text:  orig,
			lower: strings.ToLower(orig),
			index: len(sentences),
		})
	}

	start := 0
	for i, r := range text {
		if i < start {
			continue
		}
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			add(text[start:end])
			start = end
		}
	}
	if start < len(text) {
		add(text[start:])
	}
	return sentences
}
