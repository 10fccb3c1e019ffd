package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Environment variables read by the tool
const (
	// EnvGateway overrides the PICS gateway base URL
	EnvGateway = "STEAM_APP_INFO_GATEWAY"

	// EnvTimeout overrides the network deadline (e.g., "30s", "2m")
	EnvTimeout = "STEAM_APP_INFO_TIMEOUT"

	// EnvCacheFile sets the YAML cache file that digests are merged into
	EnvCacheFile = "STEAM_APP_INFO_CACHE"

	// EnvLogLevel sets the stderr log level (debug, info, warn, error)
	EnvLogLevel = "STEAM_APP_INFO_LOG_LEVEL"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config represents the tool configuration
type Config struct {
	// GatewayURL is the base URL of the PICS gateway
	GatewayURL string `json:"gatewayUrl" validate:"required,url"`

	// Timeout bounds the whole network exchange (handshake, query, logoff)
	Timeout time.Duration `json:"timeout" validate:"required"`

	// Format is the output encoding, either "json" or "yaml"
	Format string `json:"format" validate:"oneof=json yaml"`

	// Summary prints the typed digest of each app instead of the raw result
	Summary bool `json:"summary"`

	// CacheFile is a YAML cache that digests are merged into (empty disables it)
	CacheFile string `json:"cacheFile"`

	// Outdated adds every cache entry marked outdated to the requested ids
	Outdated bool `json:"outdated"`

	// LogLevel is the minimum level written to stderr
	LogLevel slog.Level `json:"logLevel"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		GatewayURL: "http://127.0.0.1:8437",
		Timeout:    30 * time.Second,
		Format:     FormatJSON,
		Summary:    false,
		CacheFile:  "", // Empty means no cache
		Outdated:   false,
		LogLevel:   slog.LevelWarn,
	}
}

// ApplyEnv overrides fields with the values of any environment variables that are set
func (c *Config) ApplyEnv(getenv func(key string) string) error {
	if v := getenv(EnvGateway); v != "" {
		c.GatewayURL = v
	}
	if v := getenv(EnvTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		c.Timeout = timeout
	}
	if v := getenv(EnvCacheFile); v != "" {
		c.CacheFile = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		level, err := ParseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
		}
		c.LogLevel = level
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("gateway URL is required")
	}
	u, err := url.Parse(c.GatewayURL)
	if err != nil {
		return fmt.Errorf("invalid gateway URL %q: %w", c.GatewayURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid gateway URL %q: scheme must be http or https", c.GatewayURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid gateway URL %q: missing host", c.GatewayURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Format != FormatJSON && c.Format != FormatYAML {
		return fmt.Errorf("unsupported format %q (want %s or %s)", c.Format, FormatJSON, FormatYAML)
	}
	if c.Outdated && c.CacheFile == "" {
		return fmt.Errorf("--outdated requires a cache file")
	}
	return nil
}

// ParseLogLevel parses a level name such as "debug" or "WARN"
func ParseLogLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, err
	}
	return level, nil
}
