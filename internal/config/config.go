// Package config provides centralized configuration management for notelens.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Retry    RetryConfig    `mapstructure:"retry"`
	License  LicenseConfig  `mapstructure:"license"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig selects and tunes the response cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string        `mapstructure:"backend"`
	Capacity   int           `mapstructure:"capacity"`
	NotesTTL   time.Duration `mapstructure:"notes_ttl"`
	ContentTTL time.Duration `mapstructure:"content_ttl"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	RedisDB    int           `mapstructure:"redis_db"`
}

// UpstreamConfig points at the task-board GraphQL API.
type UpstreamConfig struct {
	URL        string        `mapstructure:"url"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LimitsConfig tunes the outbound rate limiter and the free tier.
type LimitsConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffCap        time.Duration `mapstructure:"backoff_cap"`
	FreeDailyFetches  int           `mapstructure:"free_daily_fetches"`
}

// RetryConfig bounds the automatic retry for retryable failures.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// LicenseConfig points at the license-verification API.
type LicenseConfig struct {
	URL              string `mapstructure:"url"`
	ProductPermalink string `mapstructure:"product_permalink"`
	ProductID        string `mapstructure:"product_id"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}
