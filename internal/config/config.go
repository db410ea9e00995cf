// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSheets   = "sheets"
)

// Notify backends.
const (
	NotifyLog    = "log"
	NotifyPush   = "push"
	NotifyPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Store     StoreConfig     `mapstructure:"store"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// MonitorConfig governs the cycle orchestrator and change detector.
type MonitorConfig struct {
	Concurrency          int     `mapstructure:"concurrency"`
	TargetTimeoutSeconds int     `mapstructure:"target_timeout_seconds"`
	Timezone             string  `mapstructure:"timezone"`
	LargePageThreshold   int     `mapstructure:"large_page_threshold"`
	MinChangeChars       int     `mapstructure:"min_change_chars"`
	MinChangeRatio       float64 `mapstructure:"min_change_ratio"`
}

// HTTPConfig configures the probe fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// StoreConfig selects and configures the row store backend.
type StoreConfig struct {
	Backend         string `mapstructure:"backend"`
	DSN             string `mapstructure:"dsn"`
	Table           string `mapstructure:"table"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name"`
	SheetID         int64  `mapstructure:"sheet_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// NotifyConfig selects and configures the notification sink.
type NotifyConfig struct {
	Backend   string `mapstructure:"backend"`
	Endpoint  string `mapstructure:"endpoint"`
	Token     string `mapstructure:"token"`
	Recipient string `mapstructure:"recipient"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// OracleConfig configures the URL-synthesis fallback.
type OracleConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RateLimitConfig controls per-domain politeness.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// ServerConfig controls the ops HTTP server used in serve mode.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.concurrency", 4)
	v.SetDefault("monitor.target_timeout_seconds", 60)
	v.SetDefault("monitor.timezone", "Asia/Tokyo")
	v.SetDefault("monitor.large_page_threshold", 3000)
	v.SetDefault("monitor.min_change_chars", 50)
	v.SetDefault("monitor.min_change_ratio", 0.01)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.user_agent", "webwatch-bot/0.1")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.table", "targets")
	v.SetDefault("store.sheet_name", "Sheet1")
	v.SetDefault("notify.backend", NotifyLog)
	v.SetDefault("notify.endpoint", "https://api.line.me/v2/bot/message/push")
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.model", "gemini-2.0-flash")
	v.SetDefault("oracle.timeout_seconds", 20)
	v.SetDefault("rate_limit.rps", 1)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Monitor.Concurrency <= 0 {
		return fmt.Errorf("monitor.concurrency must be > 0")
	}
	if c.Monitor.TargetTimeoutSeconds <= 0 {
		return fmt.Errorf("monitor.target_timeout_seconds must be > 0")
	}
	if _, err := time.LoadLocation(c.Monitor.Timezone); err != nil {
		return fmt.Errorf("monitor.timezone %q: %w", c.Monitor.Timezone, err)
	}
	if c.Monitor.MinChangeRatio <= 0 || c.Monitor.MinChangeRatio >= 1 {
		return fmt.Errorf("monitor.min_change_ratio must be in (0, 1)")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	case StoreSheets:
		if c.Store.SpreadsheetID == "" {
			return fmt.Errorf("store.spreadsheet_id is required for the sheets backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, postgres, sheets")
	}
	switch c.Notify.Backend {
	case NotifyLog:
	case NotifyPush:
		if c.Notify.Token == "" || c.Notify.Recipient == "" {
			return fmt.Errorf("notify.token and notify.recipient are required for the push backend")
		}
	case NotifyPubSub:
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic are required for the pubsub backend")
		}
	default:
		return fmt.Errorf("notify.backend must be one of log, push, pubsub")
	}
	if c.Oracle.Enabled && c.Oracle.APIKey == "" {
		return fmt.Errorf("oracle.api_key must be set when the oracle is enabled")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// TargetTimeout converts the per-target budget into a duration.
func (c Config) TargetTimeout() time.Duration {
	return time.Duration(c.Monitor.TargetTimeoutSeconds) * time.Second
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Location resolves the configured scheduler timezone. Validate guarantees
// this cannot fail after Load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Monitor.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
