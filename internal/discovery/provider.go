// Package discovery finds candidate image URLs for a search term, either
// directly from an image search or by scraping images out of web results.
package discovery

import "context"

// Candidate pairs an image URL with the page it was found on. ContextURL may
// equal ImageURL when the provider has no separate host page.
type Candidate struct {
	ImageURL   string
	ContextURL string
}

// Provider is a pluggable search backend.
type Provider interface {
	// SearchImages returns up to count image candidates for the term.
	SearchImages(ctx context.Context, term string, count int) ([]Candidate, error)
	// SearchWeb returns up to count result-page URLs for the term.
	SearchWeb(ctx context.Context, term string, count int) ([]string, error)
}
