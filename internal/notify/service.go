// Package notify delivers grouped match summaries to a Discord webhook,
// honoring the platform's message length limit and rate-limit responses.
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"imagewatch/internal/config"
	"imagewatch/internal/logging"
)

// Match is one confirmed match included in a site's notification batch.
type Match struct {
	ImageURL string
	HostPage string
	Term     string
}

// Service defines the notification surface exposed to the scan pipeline.
type Service interface {
	NotifySiteMatches(ctx context.Context, siteKey string, matches []Match) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by the configured Discord
// webhook. When no webhook is configured, a noop implementation is returned.
func NewService(cfg config.Notify, logger *slog.Logger) Service {
	webhook := strings.TrimSpace(cfg.DiscordWebhook)
	if webhook == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &discordService{
		webhook:   webhook,
		username:  strings.TrimSpace(cfg.Username),
		avatarURL: strings.TrimSpace(cfg.AvatarURL),
		client:    &http.Client{Timeout: timeout},
		logger:    logging.NewComponentLogger(logger, "notify"),
		sleep:     time.Sleep,
	}
}

type noopService struct{}

func (noopService) NotifySiteMatches(ctx context.Context, siteKey string, matches []Match) error {
	return nil
}

func (noopService) TestNotification(ctx context.Context) error {
	return nil
}
