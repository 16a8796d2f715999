package normalization

import (
	"regexp"
	"strings"
)

// EmptyTranscriptPlaceholder is returned for empty or whitespace-only input.
const EmptyTranscriptPlaceholder = "No transcript provided."

var (
	blankLineRE  = regexp.MustCompile(`\n\s*\n+`)
	horizontalRE = regexp.MustCompile(`[ \t]+`)
)

// Clinical shorthand expansions. Patterns do not overlap, so apply order
// does not matter; the slice keeps the pass deterministic anyway.
var shorthandExpansions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bPt\b:?`), "Patient:"},
	{regexp.MustCompile(`(?i)\bDr\b:?`), "Doctor:"},
	{regexp.MustCompile(`(?i)\bHx\b`), "History"},
	{regexp.MustCompile(`(?i)\bC/O\b`), "Complains of"},
}

func ParseInputString(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// SanitizeTranscript normalizes a raw visit transcript into the canonical
// LLM-ready form. Total function: never fails, idempotent. Shorthand
// expansion is lossy best-effort normalization, not clinical NLP.
func SanitizeTranscript(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return EmptyTranscriptPlaceholder
	}

	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankLineRE.ReplaceAllString(text, "\n")
	text = horizontalRE.ReplaceAllString(text, " ")

	for _, exp := range shorthandExpansions {
		text = exp.pattern.ReplaceAllString(text, exp.replacement)
	}

	return text
}
