package services

import (
	"fmt"
	"regexp"
	"strings"
)

// RequiredSections are the four SOAP markers, in the only order a valid
// note may present them.
var RequiredSections = []string{
	"SUBJECTIVE:",
	"OBJECTIVE:",
	"ASSESSMENT:",
	"PLAN:",
}

// Formatting the plain-text renderer cannot display: bullets, numbered
// lists, fenced code blocks and markdown headings.
var forbiddenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*-\s+`),
	regexp.MustCompile(`(?m)^\s*\*\s+`),
	regexp.MustCompile(`(?m)^\s*\d+\.\s+`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?m)^#+\s+`),
}

// allowedEmptyValue is the sentinel for deliberately absent information.
// A section whose entire content is the sentinel is valid output.
const allowedEmptyValue = "not mentioned"

// ValidateSOAPOutput checks an LLM completion against the strict
// four-section plain-text contract. Pure function.
func ValidateSOAPOutput(text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return false, "Empty output"
	}

	cleanText := strings.TrimSpace(text)

	if !strings.HasPrefix(cleanText, RequiredSections[0]) {
		return false, "SOAP must start with SUBJECTIVE"
	}

	for _, section := range RequiredSections {
		if !strings.Contains(cleanText, section) {
			return false, fmt.Sprintf("Missing section: %s", section)
		}
	}

	lastPos := -1
	for _, section := range RequiredSections {
		pos := strings.Index(cleanText, section)
		if pos < lastPos {
			return false, "Sections out of order"
		}
		lastPos = pos
	}

	for _, pattern := range forbiddenPatterns {
		if pattern.MatchString(cleanText) {
			return false, "Forbidden markdown formatting detected"
		}
	}

	for i, section := range RequiredSections {
		start := strings.Index(cleanText, section) + len(section)
		end := len(cleanText)
		if i < len(RequiredSections)-1 {
			end = strings.Index(cleanText, RequiredSections[i+1])
		}

		content := strings.ToLower(strings.TrimSpace(cleanText[start:end]))
		if content == "" {
			return false, fmt.Sprintf("Empty content under %s", section)
		}
		if content == allowedEmptyValue || content == allowedEmptyValue+"." {
			continue
		}
	}

	return true, "Valid SOAP"
}
