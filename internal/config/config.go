// Package config provides configuration loading and parsing for the
// configuration sync client and notification server.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/nodalsync/configsync/internal/cache"
	"github.com/nodalsync/configsync/internal/health"
)

// Configuration errors.
var (
	ErrAppIDRequired         = errors.New("config: app_id is required")
	ErrMetaServiceURLRequired = errors.New("config: meta_service_url is required")
)

// RuntimeConfig defines the interface for accessing runtime configuration
// that supports hot-reload. Components that need to observe config changes
// should use this interface instead of holding a direct *Config pointer,
// which would become stale after hot-reload.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Store backend constants, see SPEC_FULL.md §6.
const (
	StoreBackendNone = "none"
	StoreBackendFile = "file"
	StoreBackendS3   = "s3"
	StoreBackendGCS  = "gcs"
)

// Default knob values, see SPEC_FULL.md §6.
const (
	DefaultRefreshIntervalMS        = 5 * 60 * 1000
	DefaultLongPollingInitialDelayMS = 2000
	DefaultLoadConfigQPS            = 2
	DefaultLongPollQPS              = 2
	DefaultOnErrorRetryIntervalMS   = 1000
	DefaultLongPollReadTimeoutMS    = 90 * 1000
	DefaultHoldTimeoutMS            = 60 * 1000
)

// Config is the complete configuration for a configuration sync client (and,
// where Server is set, the notification server it talks to).
type Config struct {
	// AppID identifies the application whose namespaces are synced.
	AppID string `yaml:"app_id" toml:"app_id"`

	// Cluster selects the deployment cluster. Defaults to "default".
	Cluster string `yaml:"cluster" toml:"cluster"`

	// MetaServiceURL is the base URL of the meta server that resolves
	// Config Service endpoints. Required.
	MetaServiceURL string `yaml:"meta_service_url" toml:"meta_service_url"`

	// Namespaces lists the namespaces the client synchronizes at startup.
	Namespaces []string `yaml:"namespaces" toml:"namespaces"`

	// RefreshIntervalMS is the periodic full-refresh fallback interval.
	// Default: 300000 (5 minutes).
	RefreshIntervalMS int `yaml:"refresh_interval_ms" toml:"refresh_interval_ms"`

	// LongPollingInitialDelayMS is the delay before the first long-poll
	// round. It is defaulted and validated here, but it is not passed to
	// the Notifier: the first round starts as soon as the first namespace
	// registers.
	// Default: 2000.
	LongPollingInitialDelayMS int `yaml:"long_polling_initial_delay_ms" toml:"long_polling_initial_delay_ms"`

	// LoadConfigQPS caps outgoing config-fetch requests per second, across
	// all namespaces and endpoints.
	// Default: 2.
	LoadConfigQPS int `yaml:"load_config_qps" toml:"load_config_qps"`

	// LongPollQPS caps outgoing long-poll requests per second, across all
	// endpoints.
	// Default: 2.
	LongPollQPS int `yaml:"long_poll_qps" toml:"long_poll_qps"`

	// OnErrorRetryIntervalMS is the Backoff Policy's minimum retry delay.
	// Default: 1000.
	OnErrorRetryIntervalMS int `yaml:"on_error_retry_interval_ms" toml:"on_error_retry_interval_ms"`

	// LongPollReadTimeoutMS bounds how long the client holds a long-poll
	// socket open waiting for a response. Must exceed the notification
	// server's HoldTimeoutMS, see SPEC_FULL.md §9a.
	// Default: 90000 (90 seconds).
	LongPollReadTimeoutMS int `yaml:"long_poll_read_timeout_ms" toml:"long_poll_read_timeout_ms"`

	// StoreBackend selects the persisted-snapshot store: none, file, s3, gcs.
	// Default: none.
	StoreBackend string `yaml:"store_backend" toml:"store_backend"`
	Store        StoreConfig `yaml:"store" toml:"store"`

	Cache   cache.Config  `yaml:"cache" toml:"cache"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Health  health.Config `yaml:"health" toml:"health"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
}

// StoreConfig configures the persisted-snapshot store backend.
type StoreConfig struct {
	// Path is the directory snapshots are written to when StoreBackend is
	// "file".
	Path string `yaml:"path" toml:"path"`

	// Bucket is the S3/GCS bucket name when StoreBackend is "s3" or "gcs".
	Bucket string `yaml:"bucket" toml:"bucket"`

	// Prefix is an optional key prefix within Bucket.
	Prefix string `yaml:"prefix" toml:"prefix"`

	// Region is the AWS region, used when StoreBackend is "s3".
	Region string `yaml:"region" toml:"region"`
}

// ServerConfig configures the Notification Server (C8) counterpart, used
// only by the notifyhubd binary.
type ServerConfig struct {
	Listen string `yaml:"listen" toml:"listen"`

	// HoldTimeoutMS bounds how long a deferred long-poll request is parked
	// before a "no change" response is sent. Must be strictly less than a
	// client's LongPollReadTimeoutMS.
	// Default: 60000 (60 seconds).
	HoldTimeoutMS int `yaml:"hold_timeout_ms" toml:"hold_timeout_ms"`

	MaxConcurrentLongPolls int `yaml:"max_concurrent_long_polls" toml:"max_concurrent_long_polls"`
}

// GetCluster returns Cluster with a "default" fallback.
func (c *Config) GetCluster() string {
	if c.Cluster == "" {
		return "default"
	}
	return c.Cluster
}

// GetRefreshInterval returns RefreshIntervalMS as a Duration, defaulted.
func (c *Config) GetRefreshInterval() time.Duration {
	if c.RefreshIntervalMS <= 0 {
		return time.Duration(DefaultRefreshIntervalMS) * time.Millisecond
	}
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// GetLongPollingInitialDelay returns LongPollingInitialDelayMS as a Duration, defaulted.
func (c *Config) GetLongPollingInitialDelay() time.Duration {
	if c.LongPollingInitialDelayMS <= 0 {
		return time.Duration(DefaultLongPollingInitialDelayMS) * time.Millisecond
	}
	return time.Duration(c.LongPollingInitialDelayMS) * time.Millisecond
}

// GetLoadConfigQPS returns LoadConfigQPS, defaulted.
func (c *Config) GetLoadConfigQPS() int {
	if c.LoadConfigQPS <= 0 {
		return DefaultLoadConfigQPS
	}
	return c.LoadConfigQPS
}

// GetLongPollQPS returns LongPollQPS, defaulted.
func (c *Config) GetLongPollQPS() int {
	if c.LongPollQPS <= 0 {
		return DefaultLongPollQPS
	}
	return c.LongPollQPS
}

// GetOnErrorRetryInterval returns OnErrorRetryIntervalMS as a Duration, defaulted.
func (c *Config) GetOnErrorRetryInterval() time.Duration {
	if c.OnErrorRetryIntervalMS <= 0 {
		return time.Duration(DefaultOnErrorRetryIntervalMS) * time.Millisecond
	}
	return time.Duration(c.OnErrorRetryIntervalMS) * time.Millisecond
}

// GetLongPollReadTimeout returns LongPollReadTimeoutMS as a Duration, defaulted.
func (c *Config) GetLongPollReadTimeout() time.Duration {
	if c.LongPollReadTimeoutMS <= 0 {
		return time.Duration(DefaultLongPollReadTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.LongPollReadTimeoutMS) * time.Millisecond
}

// GetStoreBackend returns StoreBackend with a "none" fallback.
func (c *Config) GetStoreBackend() string {
	if c.StoreBackend == "" {
		return StoreBackendNone
	}
	return c.StoreBackend
}

// GetHoldTimeout returns HoldTimeoutMS as a Duration, defaulted.
func (s *ServerConfig) GetHoldTimeout() time.Duration {
	if s.HoldTimeoutMS <= 0 {
		return time.Duration(DefaultHoldTimeoutMS) * time.Millisecond
	}
	return time.Duration(s.HoldTimeoutMS) * time.Millisecond
}

// GetMaxConcurrentLongPollsOption returns MaxConcurrentLongPolls as an Option.
// Returns None if unset (unlimited).
func (s *ServerConfig) GetMaxConcurrentLongPollsOption() mo.Option[int] {
	if s.MaxConcurrentLongPolls <= 0 {
		return mo.None[int]()
	}
	return mo.Some(s.MaxConcurrentLongPolls)
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
	Pretty bool   `yaml:"pretty" toml:"pretty"`
}

// ParseLevel converts a string log level to zerolog.Level.
// Returns zerolog.InfoLevel if the level string is invalid.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
