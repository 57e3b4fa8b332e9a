// Package config loads urlhealth settings from an optional YAML file and
// URLHEALTH_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seckatie/urlhealth/internal/core"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDashboardAddr = ":8080"
	DefaultAPIURL        = "http://localhost:8000"
	DefaultMonitorAddr   = ":8000"
	DefaultDBPath        = "urlhealth.db"
	DefaultWorkers       = 8
	DefaultLogoRate      = 10
	DefaultLogoBurst     = 5
	DefaultLogoCacheTTL  = time.Hour
)

// Environment variables that override file values.
const (
	EnvAPIURL        = "URLHEALTH_API_URL"
	EnvDB            = "URLHEALTH_DB"
	EnvDashboardAddr = "URLHEALTH_ADDR"
	EnvMonitorAddr   = "URLHEALTH_MONITOR_ADDR"
	EnvWorkers       = "URLHEALTH_WORKERS"
)

// Config is the top-level configuration.
type Config struct {
	Dashboard DashboardConfig `yaml:"dashboard"`
	Monitor   MonitorConfig   `yaml:"monitor"`
}

// DashboardConfig holds settings for `urlhealth serve` and the terminal
// commands that talk to a monitoring service.
type DashboardConfig struct {
	// Addr is the listen address of the web dashboard.
	Addr string `yaml:"addr"`

	// APIURL is the base URL of the monitoring service. It is the only
	// setting applied on hot reload.
	APIURL string `yaml:"api_url"`

	// ClientTimeout bounds each request to the monitoring service.
	ClientTimeout time.Duration `yaml:"client_timeout"`

	// SessionTTL is how long an idle browser session is kept.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// Locale forces a display locale; empty means use Accept-Language.
	Locale string `yaml:"locale"`

	Logo LogoConfig `yaml:"logo"`
}

// LogoConfig controls server-side logo resolution.
type LogoConfig struct {
	// Provider is the logo service with a {host} placeholder. "none" disables it.
	Provider string        `yaml:"provider"`
	Rate     float64       `yaml:"rate"`
	Burst    int           `yaml:"burst"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// MonitorConfig holds settings for the reference monitoring service.
type MonitorConfig struct {
	Addr string `yaml:"addr"`

	// DB is the path of the sqlite database.
	DB string `yaml:"db"`

	// ProbeTimeout bounds a single URL probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// Workers is the number of URLs probed concurrently per request.
	Workers int `yaml:"workers"`

	// Browser switches probing to a headless Chrome page load.
	Browser bool `yaml:"browser"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			Addr:          DefaultDashboardAddr,
			APIURL:        DefaultAPIURL,
			ClientTimeout: core.DefaultClientTimeout,
			SessionTTL:    core.DefaultSessionTTL,
			Logo: LogoConfig{
				Provider: core.DefaultLogoProvider,
				Rate:     DefaultLogoRate,
				Burst:    DefaultLogoBurst,
				CacheTTL: DefaultLogoCacheTTL,
			},
		},
		Monitor: MonitorConfig{
			Addr:         DefaultMonitorAddr,
			DB:           DefaultDBPath,
			ProbeTimeout: core.DefaultProbeTimeout,
			Workers:      DefaultWorkers,
		},
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvAPIURL); v != "" {
		cfg.Dashboard.APIURL = v
	}
	if v := getenv(EnvDashboardAddr); v != "" {
		cfg.Dashboard.Addr = v
	}
	if v := getenv(EnvDB); v != "" {
		cfg.Monitor.DB = v
	}
	if v := getenv(EnvMonitorAddr); v != "" {
		cfg.Monitor.Addr = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Monitor.Workers = n
	}
	return nil
}

// Validate reports whether c is usable, e.g. after command-line overrides.
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Dashboard.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("dashboard.api_url must be an absolute http(s) URL, got %q", cfg.Dashboard.APIURL)
	}
	if cfg.Dashboard.ClientTimeout <= 0 {
		return fmt.Errorf("dashboard.client_timeout must be positive")
	}
	if cfg.Dashboard.SessionTTL <= 0 {
		return fmt.Errorf("dashboard.session_ttl must be positive")
	}
	if cfg.Dashboard.Logo.Rate <= 0 || cfg.Dashboard.Logo.Burst <= 0 {
		return fmt.Errorf("dashboard.logo.rate and burst must be positive")
	}
	if cfg.Monitor.DB == "" {
		return fmt.Errorf("monitor.db is required")
	}
	if cfg.Monitor.ProbeTimeout <= 0 {
		return fmt.Errorf("monitor.probe_timeout must be positive")
	}
	if cfg.Monitor.Workers <= 0 {
		return fmt.Errorf("monitor.workers must be positive")
	}
	return nil
}
