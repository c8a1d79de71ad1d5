// Package recheck periodically revisits matched URLs to detect takedown and
// merges the liveness results back into the alert state.
package recheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"imagewatch/internal/alerts"
)

const (
	checkerUserAgent = "ImageWatch/1.0"

	// How much of an HTML body is scanned for takedown language.
	maxBodyBytes = 256 << 10

	maxFailReasonLen = 300
)

// Hosts phrase removal many different ways; these patterns cover the common
// takedown and not-found language.
var takedownPattern = regexp.MustCompile(`(?i)(removed\s+due\s+to\s+copyright|dmca|not\s+available|content\s+unavailable|has\s+been\s+deleted|page\s+not\s+found|violat(e|ion)|terms\s+of\s+service)`)

// Checker fetches a match URL and classifies whether the content is still up.
type Checker struct {
	httpClient *http.Client
}

// NewChecker creates a checker with the given per-request timeout.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{httpClient: &http.Client{Timeout: timeout}}
}

// CheckURL classifies one URL. Removal evidence (404/410/451, or takedown
// language in a 200 HTML body) is gone; access restriction and redirects are
// up; transport failure is error, which is inconclusive rather than evidence
// of removal.
func (c *Checker) CheckURL(ctx context.Context, url string) alerts.Liveness {
	checkedAt := time.Now().UTC()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return alerts.Liveness{
			State:      alerts.StatusError,
			FailReason: failReason(err),
			CheckedAt:  checkedAt,
		}
	}
	req.Header.Set("User-Agent", checkerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return alerts.Liveness{
			State:      alerts.StatusError,
			FailReason: failReason(err),
			CheckedAt:  checkedAt,
		}
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	var body string
	if status == http.StatusOK && strings.Contains(resp.Header.Get("Content-Type"), "text") {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		body = string(raw)
	}

	state := alerts.StatusUp
	if looksGone(status, body) {
		state = alerts.StatusGone
	}
	return alerts.Liveness{
		State:      state,
		HTTPStatus: &status,
		CheckedAt:  checkedAt,
	}
}

func looksGone(status int, body string) bool {
	switch status {
	case http.StatusNotFound, http.StatusGone, http.StatusUnavailableForLegalReasons:
		return true
	case http.StatusUnauthorized, http.StatusForbidden:
		return false
	}
	if status >= 300 && status < 400 {
		return false
	}
	return status == http.StatusOK && body != "" && takedownPattern.MatchString(body)
}

func failReason(err error) string {
	reason := fmt.Sprintf("http_error:%s", err)
	if len(reason) > maxFailReasonLen {
		reason = reason[:maxFailReasonLen]
	}
	return reason
}
