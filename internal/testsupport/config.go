// Package testsupport builds throwaway configurations for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"imagewatch/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose documents all live under a unique temp
// directory. Scheduling is disabled so nothing runs unless a test asks for
// it, and the API binds to an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.HashDB = filepath.Join(base, "hashes.json")
	cfg.Paths.SeenCache = filepath.Join(base, "seen.json")
	cfg.Paths.AlertsState = filepath.Join(base, "alerts.json")
	cfg.Paths.AuditLog = filepath.Join(base, "matches.csv")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Search.IntervalSeconds = 0
	cfg.Recheck.IntervalSeconds = 3600
	cfg.Recheck.InitialDelaySeconds = 3600

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSearchTerms sets the scan terms on the test config.
func WithSearchTerms(terms ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Search.Terms = terms
	}
}

// WithWebhook points notification delivery at the given webhook URL.
func WithWebhook(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notify.DiscordWebhook = url
	}
}
