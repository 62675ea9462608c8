// Package config loads toolexecd's runtime configuration from the
// environment and expands any secret references found in it before the
// rest of the service sees them.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/toolexec/secret"
)

// Config is the complete environment-sourced configuration for toolexecd.
// Struct tags carry both the variable name and its documented default.
type Config struct {
	MaxArgsLen         int   `env:"MAX_ARGS_LEN" envDefault:"2048"`
	MaxStdoutBytes     int64 `env:"MAX_STDOUT_BYTES" envDefault:"1048576"`
	MaxStderrBytes     int64 `env:"MAX_STDERR_BYTES" envDefault:"262144"`
	DefaultTimeoutSec  int   `env:"DEFAULT_TIMEOUT_SEC" envDefault:"300"`
	DefaultConcurrency int   `env:"DEFAULT_CONCURRENCY" envDefault:"2"`
	MaxMemoryMB        int   `env:"MAX_MEMORY_MB" envDefault:"512"`
	MaxFileDescriptors int   `env:"MAX_FILE_DESCRIPTORS" envDefault:"256"`

	ServerTransport string `env:"SERVER_TRANSPORT" envDefault:"stdio"`
	ServerHost      string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	ServerPort      int    `env:"SERVER_PORT" envDefault:"8080"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"30s"`

	ToolInclude string `env:"TOOL_INCLUDE"`
	ToolExclude string `env:"TOOL_EXCLUDE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AuthEnabled gates the HTTP transport's /tools routes behind the API
	// key check and role policy in package auth.
	AuthEnabled bool `env:"AUTH_ENABLED" envDefault:"false"`

	// APIKeySeed provisions the initial operator key. It may carry a
	// "${VAR}" or "secretref:provider:ref" value; Resolve expands it
	// through a secret.Resolver rather than trusting the raw environment
	// string.
	APIKeySeed string `env:"API_KEY_SEED"`

	// MetricsExporter and TracingExporter select the observe package's
	// exporter (otlp|prometheus|stdout|none / otlp|jaeger|stdout|none).
	MetricsExporter string `env:"METRICS_EXPORTER" envDefault:"none"`
	TracingExporter string `env:"TRACING_EXPORTER" envDefault:"none"`

	// CacheEnabled turns on the optional idempotency cache. CacheTTL bounds
	// both the default and max TTL; a single value is enough since toolexec
	// does not expose per-request TTL overrides.
	CacheEnabled bool          `env:"CACHE_ENABLED" envDefault:"false"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// Load parses Config from the process environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the zero-value
// env.Parse defaults cannot catch (an out-of-range transport name, a
// non-positive cap).
func (c Config) Validate() error {
	switch c.ServerTransport {
	case "stdio", "http":
	default:
		return fmt.Errorf("config: SERVER_TRANSPORT must be stdio or http, got %q", c.ServerTransport)
	}
	if c.MaxArgsLen <= 0 {
		return fmt.Errorf("config: MAX_ARGS_LEN must be positive, got %d", c.MaxArgsLen)
	}
	if c.DefaultConcurrency <= 0 {
		return fmt.Errorf("config: DEFAULT_CONCURRENCY must be positive, got %d", c.DefaultConcurrency)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("config: SERVER_PORT out of range, got %d", c.ServerPort)
	}
	return nil
}

// Resolve expands any "${VAR}"/"secretref:provider:ref" value carried in
// the configuration's secret-bearing fields through r, returning a copy
// with those fields replaced by their resolved values. A nil r performs
// strict "${VAR}" expansion only, with no provider chain.
func (c Config) Resolve(ctx context.Context, r *secret.Resolver) (Config, error) {
	resolved := c

	apiKeySeed, err := r.ResolveValue(ctx, c.APIKeySeed)
	if err != nil {
		return Config{}, fmt.Errorf("config: resolving API_KEY_SEED: %w", err)
	}
	resolved.APIKeySeed = apiKeySeed

	return resolved, nil
}

// DefaultTimeout returns DefaultTimeoutSec as a time.Duration.
func (c Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSec) * time.Second
}
