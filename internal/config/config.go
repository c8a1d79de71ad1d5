package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations plus the API bind address.
type Paths struct {
	HashDB      string `toml:"hash_db"`
	SeenCache   string `toml:"seen_cache"`
	AlertsState string `toml:"alerts_state"`
	AuditLog    string `toml:"audit_log"`
	DownloadDir string `toml:"download_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
}

// Search contains scan scheduling and candidate discovery settings.
type Search struct {
	Terms             []string `toml:"terms"`
	ImageCountPerTerm int      `toml:"image_count_per_term"`
	WebCountPerTerm   int      `toml:"web_count_per_term"`
	ExcludedDomains   []string `toml:"excluded_domains"`
	IntervalSeconds   int      `toml:"interval_seconds"`
	RequestTimeout    int      `toml:"request_timeout"`
}

// Google contains credentials for the Google Programmable Search API.
type Google struct {
	Enabled bool   `toml:"enabled"`
	APIKey  string `toml:"api_key"`
	CSEID   string `toml:"cse_id"`
}

// Match contains fingerprint matching thresholds.
type Match struct {
	Threshold    int     `toml:"threshold"`
	UseSSIM      bool    `toml:"use_ssim"`
	SSIMMinScore float64 `toml:"ssim_min_score"`
}

// Notify contains Discord webhook delivery settings.
type Notify struct {
	DiscordWebhook string `toml:"discord_webhook"`
	Username       string `toml:"username"`
	AvatarURL      string `toml:"avatar_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Recheck contains takedown rechecker tuning.
type Recheck struct {
	IntervalSeconds     int    `toml:"interval_seconds"`
	InitialDelaySeconds int    `toml:"initial_delay_seconds"`
	Workers             int    `toml:"workers"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	BatchLimit          int    `toml:"batch_limit"`
	Scope               string `toml:"scope"` // "all" or "open"
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for imagewatch.
//
// Configuration sections by subsystem:
//   - Paths: persisted documents, saved copies, logs, API bind address
//   - Search: terms, per-term result counts, exclusions, scan schedule
//   - Google: Programmable Search API credentials
//   - Match: hash distance threshold and SSIM verification
//   - Notify: Discord webhook settings
//   - Recheck: takedown rechecker interval, pool size, and scope
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Search  Search  `toml:"search"`
	Google  Google  `toml:"google"`
	Match   Match   `toml:"match"`
	Notify  Notify  `toml:"notify"`
	Recheck Recheck `toml:"recheck"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/imagewatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("imagewatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Paths.HashDB),
		filepath.Dir(c.Paths.SeenCache),
		filepath.Dir(c.Paths.AlertsState),
		filepath.Dir(c.Paths.AuditLog),
		c.Paths.DownloadDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
