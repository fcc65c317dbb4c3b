package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Policies are safe for concurrent use once built.
var (
	textPolicy = bluemonday.StrictPolicy()
	htmlPolicy = bluemonday.UGCPolicy()
)

// sanitizeText reduces s to a single line of plain text: markup removed,
// entities decoded, runs of whitespace collapsed.
func sanitizeText(s string) string {
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeHTML keeps the markup a user may legitimately post in rich text
// and drops everything else (scripts, event handlers, unsafe URLs).
func sanitizeHTML(s string) string {
	return htmlPolicy.Sanitize(s)
}
