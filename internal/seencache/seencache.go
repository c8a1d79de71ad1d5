// Package seencache tracks candidate URLs across scan runs so a URL is
// downloaded at most once, including URLs whose download failed.
package seencache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"imagewatch/internal/fileutil"
)

type document struct {
	URLs []string `json:"urls"`
}

// Cache is the in-memory seen-URL set for one scan run. Not safe for
// concurrent use; the scan pipeline owns it for the duration of a run.
type Cache struct {
	path string
	urls map[string]struct{}
}

// Load reads the cache at path. A missing or empty file starts the cache
// empty; a corrupt file is an error so a scan never silently forgets its
// download history.
func Load(path string) (*Cache, error) {
	c := &Cache{path: path, urls: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read seen cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seen cache: %w", err)
	}
	for _, url := range doc.URLs {
		c.urls[url] = struct{}{}
	}
	return c, nil
}

// Contains reports whether the URL was processed by this or an earlier run.
func (c *Cache) Contains(url string) bool {
	_, ok := c.urls[url]
	return ok
}

// Add marks the URL as processed. Callers add before attempting a download,
// so a failed download is not retried later.
func (c *Cache) Add(url string) {
	c.urls[url] = struct{}{}
}

// Len returns the number of tracked URLs.
func (c *Cache) Len() int {
	return len(c.urls)
}

// Save rewrites the cache on disk as a sorted list, atomically.
func (c *Cache) Save() error {
	doc := document{URLs: make([]string, 0, len(c.urls))}
	for url := range c.urls {
		doc.URLs = append(doc.URLs, url)
	}
	sort.Strings(doc.URLs)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal seen cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("persist seen cache: %w", err)
	}
	return nil
}
