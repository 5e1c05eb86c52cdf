package service

import (
	"regexp"
	"strings"
)

var (
	// script blocks go first so their contents disappear with the tags
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	markupTagPattern   = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	mentionPattern     = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
)

// SanitizeMessage strips markup tags, collapses whitespace runs (including
// newlines) to single spaces and trims the result.
func SanitizeMessage(raw string) string {
	text := scriptBlockPattern.ReplaceAllString(raw, "")
	text = markupTagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// ExtractMentionTokens scans text for @username tokens and returns them in
// first-occurrence order, case as typed. Repeated mentions of the same
// user (case-insensitively) are returned once.
func ExtractMentionTokens(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, match := range matches {
		lower := strings.ToLower(match[1])
		if seen[lower] {
			continue
		}
		seen[lower] = true
		tokens = append(tokens, match[1])
	}
	return tokens
}
