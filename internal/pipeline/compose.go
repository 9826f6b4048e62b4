package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"newsbot/internal/ai"
)

// maxCaptionLength is the composition budget in characters; Telegram caps
// media captions around this size.
const maxCaptionLength = 1000

// Compose assembles the final post: cleaned text, an optional reliability
// footer, and the tag line, truncated to the caption budget.
func Compose(cleaned string, analysis ai.Analysis) string {
	footer := reliabilityFooter(analysis)

	final := join(cleaned, footer, analysis.Tags)
	if utf8.RuneCountInString(final) <= maxCaptionLength {
		return final
	}

	// Keep the footer and tags; give the body whatever room is left.
	overhead := utf8.RuneCountInString(footer) + utf8.RuneCountInString(analysis.Tags) + 20
	available := maxCaptionLength - overhead
	if available > 100 {
		return join(Truncate(cleaned, available), footer, analysis.Tags)
	}
	return Truncate(cleaned, maxCaptionLength)
}

func reliabilityFooter(analysis ai.Analysis) string {
	if analysis.Reliability <= 0 {
		return ""
	}
	icon := "🔴"
	switch {
	case analysis.Reliability >= 8:
		icon = "🟢"
	case analysis.Reliability >= 5:
		icon = "🟡"
	}
	return fmt.Sprintf("🤖 Patikimumas: %s %d/10", icon, analysis.Reliability)
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// Truncate cuts text to at most max characters, preferring a word boundary
// when one is close enough to the limit.
func Truncate(text string, max int) string {
	const suffix = "..."

	if utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	cut := max - len(suffix)
	if cut < 0 {
		cut = 0
	}
	truncated := runes[:cut]

	lastSpace := -1
	for i, r := range truncated {
		if r == ' ' {
			lastSpace = i
		}
	}
	if lastSpace > max*8/10 {
		truncated = truncated[:lastSpace]
	}
	return string(truncated) + suffix
}
