// Package imagefetch downloads and decodes candidate images.
package imagefetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
)

const userAgent = "ImageWatch/1.0"

// Cap on a single download. Anything larger is not a candidate worth hashing.
const maxImageBytes = 32 << 20

// Result holds a fetched image in both decoded and raw form. The raw bytes
// let callers persist an exact local copy without re-encoding.
type Result struct {
	Image  image.Image
	Data   []byte
	Format string
}

// Fetcher downloads candidate images with a fixed per-request timeout.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads and decodes the image at url. referer, when non-empty, is
// sent with the request since some hosts refuse image requests without one.
func (f *Fetcher) Fetch(ctx context.Context, url, referer string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &Result{Image: img, Data: data, Format: format}, nil
}
