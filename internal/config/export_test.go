package config

import (
	"github.com/nodalsync/configsync/internal/cache"
	"github.com/nodalsync/configsync/internal/health"
)

// MakeTestConfig returns a minimal valid Config with all fields set.
func MakeTestConfig() *Config {
	return &Config{
		AppID:          "test-app",
		Cluster:        "default",
		MetaServiceURL: "http://meta.example.com",
		Namespaces:     []string{"application"},
		Cache:          MakeTestCacheConfig(),
		Logging:        MakeTestLoggingConfig(),
		Health:         MakeTestHealthConfig(),
		Server:         MakeTestServerConfig(),
	}
}

// MakeTestServerConfig returns a minimal ServerConfig with all fields set.
func MakeTestServerConfig() ServerConfig {
	return ServerConfig{
		Listen:                 "127.0.0.1:8080",
		HoldTimeoutMS:          60000,
		MaxConcurrentLongPolls: 0,
	}
}

// MakeTestLoggingConfig returns a minimal LoggingConfig with all fields set.
func MakeTestLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
		Pretty: false,
	}
}

// MakeTestHealthConfig returns a minimal health.Config with all fields set.
func MakeTestHealthConfig() health.Config {
	return health.Config{
		HealthCheck: health.CheckConfig{
			Enabled:    boolPtr(true),
			IntervalMS: 10000,
		},
		CircuitBreaker: health.CircuitBreakerConfig{
			OpenDurationMS:   30000,
			FailureThreshold: 5,
			HalfOpenProbes:   3,
		},
	}
}

// MakeTestCacheConfig returns a minimal cache.Config with all fields set.
func MakeTestCacheConfig() cache.Config {
	return cache.Config{
		Mode:      cache.ModeDisabled,
		Ristretto: cache.DefaultRistrettoConfig(),
	}
}

// MakeTestValidationError returns a ValidationError with Errors initialized.
func MakeTestValidationError() *ValidationError {
	return &ValidationError{
		Errors: []string{},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
