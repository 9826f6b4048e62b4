// Package filter implements the content filtering and cleaning engine.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// defaultStripPatterns are promotional line markers removed from forwarded
// text. A line containing any of them is dropped entirely.
var defaultStripPatterns = []string{
	"t.me/",
	"Подписаться",
	"Подпишись",
	"Канал:",
}

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// Verdict is the filter's decision on one text.
type Verdict struct {
	Accept  bool
	Reason  string
	Cleaned string
}

// Filter decides whether a text is worth forwarding and strips promotional
// content from it. A text passes when it contains no spam keyword and, if an
// allow-list is configured, at least one of its keywords.
type Filter struct {
	keywords      []string
	spamKeywords  []string
	stripPatterns []string
}

// New creates a Filter. An empty keyword list means every non-spam text
// passes.
func New(keywords, spamKeywords []string) *Filter {
	return &Filter{
		keywords:      lowerAll(keywords),
		spamKeywords:  lowerAll(spamKeywords),
		stripPatterns: defaultStripPatterns,
	}
}

// Evaluate checks the text against the spam and keyword rules and returns
// the verdict together with the cleaned text.
func (f *Filter) Evaluate(text string) Verdict {
	if text == "" {
		return Verdict{Reason: "empty text"}
	}

	lower := strings.ToLower(text)

	for _, spam := range f.spamKeywords {
		if strings.Contains(lower, spam) {
			return Verdict{Reason: "spam keyword: " + spam}
		}
	}

	cleaned := f.Clean(text)
	if cleaned == "" {
		return Verdict{Reason: "empty after cleaning"}
	}

	if len(f.keywords) == 0 {
		return Verdict{Accept: true, Reason: "no keyword filter", Cleaned: cleaned}
	}

	var matched []string
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return Verdict{Reason: "no keyword match"}
	}

	if len(matched) > 3 {
		matched = matched[:3]
	}
	return Verdict{
		Accept:  true,
		Reason:  fmt.Sprintf("keyword match: %s", strings.Join(matched, ", ")),
		Cleaned: cleaned,
	}
}

// Clean drops promotional lines and collapses runs of blank lines.
func (f *Filter) Clean(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if f.isPromoLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	return collapseNewlines.ReplaceAllString(cleaned, "\n\n")
}

// IsSpam reports whether the text contains a spam keyword.
func (f *Filter) IsSpam(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, spam := range f.spamKeywords {
		if strings.Contains(lower, spam) {
			return true
		}
	}
	return false
}

func (f *Filter) isPromoLine(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range f.stripPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.ToLower(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
