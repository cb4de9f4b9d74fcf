// Package sanitize provides text sanitization for inbound, provider-supplied text.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	entityReplacer  = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'", "&nbsp;", " ")
)

// StripHTML removes all HTML tags from a string, decoding common entities.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entityReplacer.Replace(result)
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML, collapses whitespace and truncates to maxRunes (0 means no limit).
// Use for lead replies forwarded by messaging providers.
func Text(s string, maxRunes int) string {
	result := whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
	if maxRunes > 0 && utf8.RuneCountInString(result) > maxRunes {
		runes := []rune(result)
		result = string(runes[:maxRunes])
	}
	return result
}
