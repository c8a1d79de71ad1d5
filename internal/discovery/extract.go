package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const extractorUserAgent = "ImageWatch/1.0"

// Lazy-loading galleries stash the real source in data attributes.
var imageSourceAttrs = []string{"src", "data-src", "data-original"}

// Extractor scrapes the image URLs embedded in a web page.
type Extractor struct {
	httpClient *http.Client
}

// NewExtractor creates an extractor with the given per-request timeout.
func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{httpClient: &http.Client{Timeout: timeout}}
}

// ExtractImages fetches the page and returns the absolute URL of every image
// it references. A page that does not serve HTML with status 200 yields no
// images without being an error; only transport failures are errors.
func (e *Extractor) ExtractImages(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", extractorUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base := resp.Request.URL
	var images []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := imageSource(sel)
		if src == "" {
			return
		}
		resolved, err := base.Parse(src)
		if err != nil {
			return
		}
		images = append(images, resolved.String())
	})
	return images, nil
}

func imageSource(sel *goquery.Selection) string {
	for _, attr := range imageSourceAttrs {
		if value, ok := sel.Attr(attr); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
