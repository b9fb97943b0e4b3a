package config

import (
	"fmt"
	"time"

	"github.com/reloom/reloom-go/httpapi"
	"github.com/reloom/reloom-go/logger"
)

// Config is the full client configuration.
type Config struct {
	API       httpapi.Config  `yaml:"api" mapstructure:"api"`
	Logger    logger.Config   `yaml:"logger" mapstructure:"logger"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DataDir holds the client's durable local state (session database).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// CacheConfig tunes the remote query cache and the feed loaders.
type CacheConfig struct {
	// StaleTime is the default freshness window for cached responses.
	StaleTime time.Duration `yaml:"stale_time" mapstructure:"stale_time"`
	// ProfileStaleTime is the freshness window for author profiles, which
	// change rarely and are fetched for every card in the feed.
	ProfileStaleTime time.Duration `yaml:"profile_stale_time" mapstructure:"profile_stale_time"`
	// FeedPageSize is the page size for design feeds.
	FeedPageSize int `yaml:"feed_page_size" mapstructure:"feed_page_size"`
	// NotificationsPageSize is the page size for the notification tray.
	NotificationsPageSize int `yaml:"notifications_page_size" mapstructure:"notifications_page_size"`
}

// TelemetryConfig configures the optional OTLP trace/metric export.
type TelemetryConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	c.API.ApplyDefaults()
	c.Logger.ApplyDefaults()
	if c.Cache.StaleTime <= 0 {
		c.Cache.StaleTime = 30 * time.Second
	}
	if c.Cache.ProfileStaleTime <= 0 {
		c.Cache.ProfileStaleTime = 5 * time.Minute
	}
	if c.Cache.FeedPageSize <= 0 {
		c.Cache.FeedPageSize = 20
	}
	if c.Cache.NotificationsPageSize <= 0 {
		c.Cache.NotificationsPageSize = 10
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4318"
	}
	if c.Telemetry.SampleRate <= 0 {
		c.Telemetry.SampleRate = 1.0
	}
	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = 15 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = ".reloom"
	}
}

// Validate checks the full configuration.
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if c.Cache.FeedPageSize <= 0 {
		return fmt.Errorf("config: cache.feed_page_size must be positive")
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("config: telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}
