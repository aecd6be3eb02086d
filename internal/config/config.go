// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Pacing  PacingConfig  `mapstructure:"pacing"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Store   StoreConfig   `mapstructure:"store"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Queries []QueryConfig `mapstructure:"queries"`
}

// QueryConfig is one worklist entry.
type QueryConfig struct {
	Query    string `mapstructure:"query"`
	MaxItems int    `mapstructure:"max_items"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ScraperConfig governs session execution.
type ScraperConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	MaxPages      int     `mapstructure:"max_pages"`
	RetryAttempts int     `mapstructure:"retry_attempts"`
	UserAgent     string  `mapstructure:"user_agent"`
	Mode          string  `mapstructure:"mode"`
	RPS           float64 `mapstructure:"rps"`
	Burst         int     `mapstructure:"burst"`
}

// PacingConfig bounds the anti-ban checkpoint pauses.
type PacingConfig struct {
	CheckpointMin   int `mapstructure:"checkpoint_min"`
	CheckpointMax   int `mapstructure:"checkpoint_max"`
	PauseMinSeconds int `mapstructure:"pause_min_seconds"`
	PauseMaxSeconds int `mapstructure:"pause_max_seconds"`
}

// FetcherConfig configures page navigation.
type FetcherConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig controls access to the relational store.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// StorageConfig sets where diagnostic page snapshots go.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for listing-event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EBAY_SCRAPER")
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
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.concurrency", 1)
	v.SetDefault("scraper.max_pages", 200)
	v.SetDefault("scraper.retry_attempts", 3)
	v.SetDefault("scraper.user_agent", "")
	v.SetDefault("scraper.mode", "headless")
	v.SetDefault("scraper.rps", 0.5)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("pacing.checkpoint_min", 700)
	v.SetDefault("pacing.checkpoint_max", 1000)
	v.SetDefault("pacing.pause_min_seconds", 60)
	v.SetDefault("pacing.pause_max_seconds", 180)
	v.SetDefault("fetcher.base_url", "https://www.ebay.co.uk")
	v.SetDefault("fetcher.nav_timeout_seconds", 45)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "ebay_scraper.db")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.dir", "snapshots")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. An empty query in
// the worklist is a configuration error, caught before any fetch.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	switch c.Scraper.Mode {
	case "headless", "static":
	default:
		return fmt.Errorf("scraper.mode must be headless or static, got %q", c.Scraper.Mode)
	}
	if c.Pacing.CheckpointMin <= 0 || c.Pacing.CheckpointMax < c.Pacing.CheckpointMin {
		return fmt.Errorf("pacing checkpoint range [%d, %d] is invalid", c.Pacing.CheckpointMin, c.Pacing.CheckpointMax)
	}
	if c.Pacing.PauseMinSeconds <= 0 || c.Pacing.PauseMaxSeconds < c.Pacing.PauseMinSeconds {
		return fmt.Errorf("pacing pause range [%d, %d] is invalid", c.Pacing.PauseMinSeconds, c.Pacing.PauseMaxSeconds)
	}
	switch c.Store.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("store.driver must be postgres, sqlite or memory, got %q", c.Store.Driver)
	}
	switch c.Storage.Backend {
	case "local", "gcs":
	default:
		return fmt.Errorf("storage.backend must be local or gcs, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	for i, q := range c.Queries {
		if strings.TrimSpace(q.Query) == "" {
			return fmt.Errorf("queries[%d].query must not be empty", i)
		}
		if q.MaxItems < 0 {
			return fmt.Errorf("queries[%d].max_items must not be negative", i)
		}
	}
	return nil
}

// NavTimeout converts the navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetcher.NavTimeoutSeconds) * time.Second
}

// PauseBounds converts the pacing pause range into durations.
func (c Config) PauseBounds() (time.Duration, time.Duration) {
	return time.Duration(c.Pacing.PauseMinSeconds) * time.Second,
		time.Duration(c.Pacing.PauseMaxSeconds) * time.Second
}
