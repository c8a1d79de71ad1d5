package alerts

import (
	"net/url"
	"strings"
)

// SiteKey derives the canonical grouping key for a URL: the lower-cased host
// name. Inputs without a parseable host fall back to the lower-cased input so
// every match lands somewhere reviewable.
func SiteKey(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err == nil && parsed.Host != "" {
		return strings.ToLower(parsed.Hostname())
	}
	trimmed := strings.ToLower(strings.TrimSpace(rawURL))
	if trimmed == "" {
		return "(unknown)"
	}
	return trimmed
}
