package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// EnvPrefix prefixes every environment override, e.g. CAMPAIGN_SOURCE.
const EnvPrefix = "CAMPAIGN_"

// Config holds pipeline configuration.
type Config struct {
	Source           string        `yaml:"source" env:"SOURCE"`
	DateLayout       string        `yaml:"date_layout" env:"DATE_LAYOUT"`
	DateCacheSize    int           `yaml:"date_cache_size" env:"DATE_CACHE_SIZE"`
	CollectRowErrors bool          `yaml:"collect_row_errors" env:"COLLECT_ROW_ERRORS"`
	MaxRowErrors     int           `yaml:"max_row_errors" env:"MAX_ROW_ERRORS"`
	SnapshotFile     string        `yaml:"snapshot_file" env:"SNAPSHOT_FILE"`
	SnapshotFormat   string        `yaml:"snapshot_format" env:"SNAPSHOT_FORMAT"` // csv, json, dual, or sqlite
	SummaryFile      string        `yaml:"summary_file" env:"SUMMARY_FILE"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries       int           `yaml:"max_retries" env:"MAX_RETRIES"`
	RetryBackoff     time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max" env:"RETRY_BACKOFF_MAX"`
	MaxBodySize      int           `yaml:"max_body_size" env:"MAX_BODY_SIZE"`
	UserAgent        string        `yaml:"user_agent" env:"USER_AGENT"`
	RespectRobotsTxt bool          `yaml:"respect_robots_txt" env:"RESPECT_ROBOTS_TXT"`
	MetricsAddr      string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	Verbose          bool          `yaml:"verbose" env:"VERBOSE"`
}

// DefaultConfig returns defaults matching the usual campaign export.
func DefaultConfig() *Config {
	return &Config{
		Source:           "marketing_campaign_dataset.csv",
		DateLayout:       "2006-01-02",
		DateCacheSize:    4096,
		CollectRowErrors: false,
		MaxRowErrors:     100,
		SnapshotFile:     "output/cleaned_marketing_data.csv",
		SnapshotFormat:   "csv",
		SummaryFile:      "output/summaries.json",
		Timeout:          30 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     200 * time.Millisecond,
		RetryBackoffMax:  2 * time.Second,
		MaxBodySize:      0,
		UserAgent:        "campaign-insights/1.0",
		RespectRobotsTxt: false,
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Load reads a YAML config file on top of the defaults. Fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CAMPAIGN_* environment variables. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	return nil
}

// IsRemote reports whether Source is an http(s) URL.
func (c *Config) IsRemote() bool {
	lower := strings.ToLower(c.Source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if c.IsRemote() {
		parsedURL, err := url.Parse(c.Source)
		if err != nil {
			return fmt.Errorf("invalid source URL: %w", err)
		}
		if parsedURL.Host == "" {
			return fmt.Errorf("source URL must include a host")
		}
	}

	if c.DateLayout == "" {
		return fmt.Errorf("date layout cannot be empty")
	}
	if c.DateCacheSize < 0 {
		return fmt.Errorf("date cache size cannot be negative")
	}
	if c.CollectRowErrors && c.MaxRowErrors <= 0 {
		return fmt.Errorf("max row errors must be positive when collecting row errors")
	}
	if c.SnapshotFile != "" {
		switch c.SnapshotFormat {
		case "csv", "json", "dual", "sqlite":
		default:
			return fmt.Errorf("snapshot format must be csv, json, dual, or sqlite")
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("max body size cannot be negative")
	}
	if c.IsRemote() && c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
