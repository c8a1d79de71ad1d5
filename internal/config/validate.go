package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validateMatch(); err != nil {
		return err
	}
	if err := c.validateRecheck(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.HashDB) == "" {
		return errors.New("paths.hash_db must be set")
	}
	if strings.TrimSpace(c.Paths.AlertsState) == "" {
		return errors.New("paths.alerts_state must be set")
	}
	if strings.TrimSpace(c.Paths.SeenCache) == "" {
		return errors.New("paths.seen_cache must be set")
	}
	if strings.TrimSpace(c.Paths.AuditLog) == "" {
		return errors.New("paths.audit_log must be set")
	}
	return nil
}

func (c *Config) validateGoogle() error {
	if !c.Google.Enabled {
		return nil
	}
	// Credentials may be absent for recheck-only or review-only deployments;
	// the scan pipeline reports the missing provider at run time instead.
	if strings.TrimSpace(c.Google.APIKey) != "" && strings.TrimSpace(c.Google.CSEID) == "" {
		return errors.New("google.cse_id must be set when google.api_key is configured")
	}
	return nil
}

func (c *Config) validateMatch() error {
	if c.Match.Threshold < 0 {
		return errors.New("match.threshold must not be negative")
	}
	if c.Match.SSIMMinScore < 0 || c.Match.SSIMMinScore > 1 {
		return errors.New("match.ssim_min_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRecheck() error {
	switch c.Recheck.Scope {
	case "all", "open":
		return nil
	default:
		return fmt.Errorf("recheck.scope: unsupported value %q (use \"all\" or \"open\")", c.Recheck.Scope)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
