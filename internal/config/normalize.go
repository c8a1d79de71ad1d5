package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSearch()
	c.normalizeRecheck()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.HashDB, err = expandPath(c.Paths.HashDB); err != nil {
		return fmt.Errorf("paths.hash_db: %w", err)
	}
	if c.Paths.SeenCache, err = expandPath(c.Paths.SeenCache); err != nil {
		return fmt.Errorf("paths.seen_cache: %w", err)
	}
	if c.Paths.AlertsState, err = expandPath(c.Paths.AlertsState); err != nil {
		return fmt.Errorf("paths.alerts_state: %w", err)
	}
	if c.Paths.AuditLog, err = expandPath(c.Paths.AuditLog); err != nil {
		return fmt.Errorf("paths.audit_log: %w", err)
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeSearch() {
	terms := make([]string, 0, len(c.Search.Terms))
	for _, term := range c.Search.Terms {
		if trimmed := strings.TrimSpace(term); trimmed != "" {
			terms = append(terms, trimmed)
		}
	}
	c.Search.Terms = terms

	domains := make([]string, 0, len(c.Search.ExcludedDomains))
	for _, domain := range c.Search.ExcludedDomains {
		trimmed := strings.ToLower(strings.TrimSpace(domain))
		trimmed = strings.TrimPrefix(trimmed, "*.")
		if trimmed != "" {
			domains = append(domains, trimmed)
		}
	}
	c.Search.ExcludedDomains = domains

	if c.Search.ImageCountPerTerm <= 0 {
		c.Search.ImageCountPerTerm = defaultImageCountPerTerm
	}
	if c.Search.RequestTimeout <= 0 {
		c.Search.RequestTimeout = defaultSearchTimeout
	}
}

func (c *Config) normalizeRecheck() {
	if c.Recheck.IntervalSeconds <= 0 {
		c.Recheck.IntervalSeconds = defaultRecheckInterval
	}
	if c.Recheck.InitialDelaySeconds < 0 {
		c.Recheck.InitialDelaySeconds = defaultRecheckInitialDelay
	}
	if c.Recheck.Workers <= 0 {
		c.Recheck.Workers = defaultRecheckWorkers
	}
	if c.Recheck.TimeoutSeconds <= 0 {
		c.Recheck.TimeoutSeconds = defaultRecheckTimeout
	}
	if c.Recheck.BatchLimit <= 0 {
		c.Recheck.BatchLimit = defaultRecheckBatchLimit
	}
	c.Recheck.Scope = strings.ToLower(strings.TrimSpace(c.Recheck.Scope))
	if c.Recheck.Scope == "" {
		c.Recheck.Scope = defaultRecheckScope
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
