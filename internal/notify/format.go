package notify

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// Hard platform limit on one webhook message.
	maxMessageLen = 2000

	exampleLimit = 8
	lineMaxLen   = 160
)

// FormatSiteMessage renders one site's notification: header, match count,
// the sorted unique search terms, and up to eight example lines.
func FormatSiteMessage(siteKey string, matches []Match) string {
	terms := make(map[string]struct{})
	for _, match := range matches {
		if match.Term != "" {
			terms[match.Term] = struct{}{}
		}
	}
	sortedTerms := make([]string, 0, len(terms))
	for term := range terms {
		sortedTerms = append(sortedTerms, term)
	}
	sort.Strings(sortedTerms)

	var builder strings.Builder
	fmt.Fprintf(&builder, "**ImageWatch — %s**\n", siteKey)
	fmt.Fprintf(&builder, "Matches: **%d**  |  Terms: %s\n", len(matches), strings.Join(sortedTerms, ", "))

	shown := len(matches)
	if shown > exampleLimit {
		shown = exampleLimit
	}
	lines := make([]string, 0, shown)
	for _, match := range matches[:shown] {
		hostPage := match.HostPage
		if hostPage == "" {
			hostPage = "(no host page)"
		}
		lines = append(lines, fmt.Sprintf("- %s  (via %s)", truncateLine(match.ImageURL), truncateLine(hostPage)))
	}
	builder.WriteString(strings.Join(lines, "\n"))

	if extra := len(matches) - shown; extra > 0 {
		fmt.Fprintf(&builder, "\n… and %d more matches", extra)
	}
	return builder.String()
}

func truncateLine(s string) string {
	runes := []rune(s)
	if len(runes) <= lineMaxLen {
		return s
	}
	return string(runes[:lineMaxLen-1]) + "…"
}

// splitChunks cuts a message into pieces the platform accepts, preserving
// every character. An empty message becomes a single placeholder chunk.
func splitChunks(message string) []string {
	if message == "" {
		return []string{"(empty)"}
	}
	var chunks []string
	runes := []rune(message)
	for start := 0; start < len(runes); start += maxMessageLen {
		end := start + maxMessageLen
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
