package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	// The API serves at most ten results per page and rejects start offsets
	// beyond 91.
	pageSize = 10
	maxStart = 91
)

// GoogleClient queries the Google Programmable Search API.
type GoogleClient struct {
	apiKey     string
	cseID      string
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*GoogleClient)(nil)

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) GoogleOption {
	return func(c *GoogleClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewGoogleClient creates a search client for the given engine credentials.
func NewGoogleClient(apiKey, cseID string, timeout time.Duration, opts ...GoogleOption) (*GoogleClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("google api key required")
	}
	cseID = strings.TrimSpace(cseID)
	if cseID == "" {
		return nil, errors.New("google cse id required")
	}
	client := &GoogleClient{
		apiKey:     apiKey,
		cseID:      cseID,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchItem struct {
	Link  string `json:"link"`
	Image struct {
		ContextLink string `json:"contextLink"`
	} `json:"image"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// SearchImages pages through image results until count candidates are
// collected or the API runs out of pages.
func (c *GoogleClient) SearchImages(ctx context.Context, term string, count int) ([]Candidate, error) {
	var candidates []Candidate
	err := c.paginate(ctx, term, count, true, func(item searchItem) {
		if item.Link == "" {
			return
		}
		contextURL := item.Image.ContextLink
		if contextURL == "" {
			contextURL = item.Link
		}
		candidates = append(candidates, Candidate{ImageURL: item.Link, ContextURL: contextURL})
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// SearchWeb pages through web results and returns the result-page URLs.
func (c *GoogleClient) SearchWeb(ctx context.Context, term string, count int) ([]string, error) {
	var pages []string
	err := c.paginate(ctx, term, count, false, func(item searchItem) {
		if item.Link != "" {
			pages = append(pages, item.Link)
		}
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *GoogleClient) paginate(ctx context.Context, term string, count int, images bool, collect func(searchItem)) error {
	remaining := count
	start := 1
	for remaining > 0 && start <= maxStart {
		num := pageSize
		if remaining < num {
			num = remaining
		}

		response, err := c.page(ctx, term, images, start, num)
		if err != nil {
			return err
		}
		for _, item := range response.Items {
			collect(item)
		}

		got := len(response.Items)
		if got == 0 {
			break
		}
		remaining -= got
		start += got
	}
	return nil
}

func (c *GoogleClient) page(ctx context.Context, term string, images bool, start, num int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", term)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))
	params.Set("safe", "off")
	if images {
		params.Set("searchType", "image")
	}

	endpoint := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &response, nil
}
