/*
Package config handles loading and saving autoflags configuration.

Configuration is read from ~/.autoflags/config.yaml and overridden by
AUTOFLAGS_* environment variables. Every key has a default, so a missing
file is not an error.

Schema:

	storage:
	  path: ~/.autoflags/learning.db
	  cache_ttl: 5m
	  cache_size: 1024
	  busy_retries: 5
	engine:
	  min_evidence: 3
	  fallback_threshold: 0.5
	  usage_saturation: 20
	  decay: 0.95
	  learning_rate: 0.1
	  execution_nudge: 0.2
	  baseline_window: 50
	  latency_budget: 80ms
	  weights: {size: 0.3, language: 0.4, framework: 0.3}
	  small_max_files: 20
	  medium_max_files: 100
	rules:
	  path: ~/.autoflags/rules.yaml
	retention:
	  max_age: 2160h
	logging:
	  level: info
	  format: console
	http:
	  host: 127.0.0.1
	  port: 8787
	report:
	  current_window: 168h
	  baseline_window: 720h
	  top_preferences: 5
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Soochol/superclaude-auto-flags/internal/learning"
)

// Config represents the root configuration structure.
type Config struct {
	Storage   StorageConfig         `koanf:"storage"`
	Engine    learning.Config       `koanf:"engine"`
	Rules     RulesConfig           `koanf:"rules"`
	Retention RetentionConfig       `koanf:"retention"`
	Logging   LoggingConfig         `koanf:"logging"`
	HTTP      HTTPConfig            `koanf:"http"`
	Report    learning.ReportConfig `koanf:"report"`
}

// StorageConfig locates and tunes the learning database.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables learning.
	Path string `koanf:"path"`

	// CacheTTL bounds how stale a recommendation read may be.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	CacheSize   int `koanf:"cache_size"`
	BusyRetries int `koanf:"busy_retries"`
}

// RulesConfig locates the static rule table.
type RulesConfig struct {
	Path string `koanf:"path"`
}

// RetentionConfig controls eviction of unused learned data.
type RetentionConfig struct {
	MaxAge time.Duration `koanf:"max_age"`
}

// LoggingConfig selects log level and encoder ("console" or "json").
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig is the listen address of the REST API.
type HTTPConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// Dir returns the state directory, ~/.autoflags.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".autoflags"), nil
}

// GetDefaultConfigPath returns the path to ~/.autoflags/config.yaml.
func GetDefaultConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the configuration used when nothing is overridden.
// When the home directory is unknown the file paths are left empty, which
// disables learning and uses the built-in rules.
func Default() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			CacheTTL:    5 * time.Minute,
			CacheSize:   1024,
			BusyRetries: 5,
		},
		Engine:    learning.DefaultConfig(),
		Retention: RetentionConfig{MaxAge: 90 * 24 * time.Hour},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		HTTP:      HTTPConfig{Host: "127.0.0.1", Port: 8787},
		Report:    learning.DefaultReportConfig(),
	}

	if dir, err := Dir(); err == nil {
		cfg.Storage.Path = filepath.Join(dir, "learning.db")
		cfg.Rules.Path = filepath.Join(dir, "rules.yaml")
	}
	return cfg
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return &SectionError{Section: "engine", Err: err}
	}
	if c.Storage.CacheTTL < 0 || c.Storage.CacheSize < 0 {
		return sectionErrorf("storage", "cache_ttl and cache_size must not be negative")
	}
	if c.Storage.BusyRetries < 1 {
		return sectionErrorf("storage", "busy_retries must be at least 1, got %d", c.Storage.BusyRetries)
	}
	if c.Retention.MaxAge <= 0 {
		return sectionErrorf("retention", "max_age must be positive, got %s", c.Retention.MaxAge)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return sectionErrorf("logging", "format must be console or json, got %q", c.Logging.Format)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return sectionErrorf("http", "port %d out of range", c.HTTP.Port)
	}
	if c.Report.CurrentWindow <= 0 || c.Report.BaselineWindow <= c.Report.CurrentWindow {
		return sectionErrorf("report", "windows must satisfy 0 < current_window < baseline_window")
	}
	return nil
}
