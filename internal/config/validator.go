// Package config provides configuration loading, parsing, and validation
// for the configuration sync client and notification server.
package config

import (
	"net"
	"net/url"
	"strings"
)

// Valid store backends.
var validStoreBackends = map[string]bool{
	"":               true, // empty defaults to none
	StoreBackendNone: true,
	StoreBackendFile: true,
	StoreBackendS3:   true,
	StoreBackendGCS:  true,
}

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // empty defaults to json
	"json":    true,
	"console": true,
	"pretty":  true,
}

// Validate checks the configuration for errors. It validates required
// fields, valid values, and cross-field constraints. Returns a
// ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{}

	validateIdentity(c, errs)
	validateKnobs(c, errs)
	validateStore(c, errs)
	validateServer(c, errs)
	validateLogging(c, errs)

	return errs.ToError()
}

func validateIdentity(c *Config, errs *ValidationError) {
	if c.AppID == "" {
		errs.Add("app_id is required")
	}
	if c.MetaServiceURL == "" {
		errs.Add("meta_service_url is required")
		return
	}
	u, err := url.Parse(c.MetaServiceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs.Addf("meta_service_url must be an absolute URL (got %q)", c.MetaServiceURL)
	}
}

func validateKnobs(c *Config, errs *ValidationError) {
	if c.RefreshIntervalMS < 0 {
		errs.Add("refresh_interval_ms must be >= 0")
	}
	if c.LongPollingInitialDelayMS < 0 {
		errs.Add("long_polling_initial_delay_ms must be >= 0")
	}
	if c.LoadConfigQPS < 0 {
		errs.Add("load_config_qps must be >= 0")
	}
	if c.LongPollQPS < 0 {
		errs.Add("long_poll_qps must be >= 0")
	}
	if c.OnErrorRetryIntervalMS < 0 {
		errs.Add("on_error_retry_interval_ms must be >= 0")
	}
	if c.LongPollReadTimeoutMS < 0 {
		errs.Add("long_poll_read_timeout_ms must be >= 0")
	}
	if c.GetLongPollReadTimeout() <= c.Server.GetHoldTimeout() {
		errs.Addf("long_poll_read_timeout_ms (%s) must exceed server.hold_timeout_ms (%s)",
			c.GetLongPollReadTimeout(), c.Server.GetHoldTimeout())
	}
}

func validateStore(c *Config, errs *ValidationError) {
	if !validStoreBackends[c.StoreBackend] {
		errs.Addf("store_backend is invalid (got %q, valid: none, file, s3, gcs)", c.StoreBackend)
		return
	}
	switch c.GetStoreBackend() {
	case StoreBackendFile:
		if c.Store.Path == "" {
			errs.Add("store.path is required when store_backend is file")
		}
	case StoreBackendS3, StoreBackendGCS:
		if c.Store.Bucket == "" {
			errs.Addf("store.bucket is required when store_backend is %s", c.StoreBackend)
		}
	}
}

func validateServer(c *Config, errs *ValidationError) {
	if c.Server.Listen == "" {
		return // server section only applies to notifyhubd; empty means unused
	}
	if _, port, err := net.SplitHostPort(c.Server.Listen); err != nil || port == "" {
		errs.Addf("server.listen must be in host:port format (got %q)", c.Server.Listen)
	}
	if c.Server.HoldTimeoutMS < 0 {
		errs.Add("server.hold_timeout_ms must be >= 0")
	}
	if c.Server.MaxConcurrentLongPolls < 0 {
		errs.Add("server.max_concurrent_long_polls must be >= 0")
	}
}

func validateLogging(c *Config, errs *ValidationError) {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)", c.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, pretty)", c.Logging.Format)
	}
}
