package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"imagewatch/internal/logging"
)

const (
	// SUPPRESS_EMBEDS message flag.
	flagSuppressEmbeds = 4

	maxAttempts   = 3
	maxRetryDelay = 5 * time.Second
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// errRejected marks a payload the webhook refused outright, as opposed to a
// delivery that failed on transport or rate limiting.
var errRejected = errors.New("payload rejected")

type discordService struct {
	webhook   string
	username  string
	avatarURL string
	client    *http.Client
	logger    *slog.Logger

	// injectable for tests
	sleep func(time.Duration)
}

type webhookPayload struct {
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
	Flags           int             `json:"flags,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

// NotifySiteMatches formats and delivers one site's batch. A chunk that
// cannot be delivered is dropped with a diagnostic; the remaining chunks are
// still attempted, so the method never fails the caller's run.
func (s *discordService) NotifySiteMatches(ctx context.Context, siteKey string, matches []Match) error {
	if len(matches) == 0 {
		return nil
	}
	s.deliver(ctx, FormatSiteMessage(siteKey, matches))
	return nil
}

func (s *discordService) TestNotification(ctx context.Context) error {
	s.deliver(ctx, "ImageWatch notification test")
	return nil
}

func (s *discordService) deliver(ctx context.Context, message string) {
	for _, chunk := range splitChunks(message) {
		if err := s.deliverChunk(ctx, chunk); err != nil {
			s.logger.Warn("dropping notification chunk",
				logging.Error(err),
				logging.Int("chunk_len", len(chunk)))
		}
	}
}

// deliverChunk first tries flag-based embed suppression. If the webhook
// rejects that payload, the chunk is resent without the flag with literal
// URLs wrapped in angle brackets, which suppresses embeds the manual way.
func (s *discordService) deliverChunk(ctx context.Context, chunk string) error {
	payload := webhookPayload{
		Content:         chunk,
		Username:        s.username,
		AvatarURL:       s.avatarURL,
		Flags:           flagSuppressEmbeds,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	err := s.post(ctx, payload)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errRejected) {
		return err
	}

	payload.Content = wrapLinks(chunk)
	payload.Flags = 0
	return s.post(ctx, payload)
}

func (s *discordService) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("post webhook: %w", err)
			s.sleep(500 * time.Millisecond)
			continue
		}

		status := resp.StatusCode
		if status == http.StatusTooManyRequests {
			delay := retryDelay(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("webhook rate limited, waited %s", delay)
			s.sleep(delay)
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if status >= 200 && status < 300 {
			return nil
		}
		return fmt.Errorf("%w: status %d: %s", errRejected, status, strings.TrimSpace(string(respBody)))
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

// retryDelay reads the rate-limit response's retry_after (milliseconds) and
// caps the wait.
func retryDelay(body io.Reader) time.Duration {
	var response struct {
		RetryAfter float64 `json:"retry_after"`
	}
	delay := time.Second
	if err := json.NewDecoder(body).Decode(&response); err == nil && response.RetryAfter > 0 {
		delay = time.Duration(response.RetryAfter * float64(time.Millisecond))
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func wrapLinks(text string) string {
	return urlPattern.ReplaceAllString(text, "<$0>")
}
