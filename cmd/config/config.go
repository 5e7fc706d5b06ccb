package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Logger    LoggerConfig    `toml:"logger"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ServerConfig contains the bind address and connection timeouts of the responder
type ServerConfig struct {
	Host              string        `toml:"host"`
	Port              int           `toml:"port"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "json" or "text"
	Output string `toml:"output"` // "stdout", "stderr", or file path
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `toml:"enabled"`
	RequestsPerSecond int           `toml:"requests_per_second"`
	Window            time.Duration `toml:"window"`
	ClientExpiry      time.Duration `toml:"client_expiry"`
	TrustProxyHeaders bool          `toml:"trust_proxy_headers"` // only safe behind a proxy that sets X-Forwarded-For
}

// MetricsConfig contains the optional Prometheus listener configuration
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
	Namespace  string `toml:"namespace"`
}

// Load loads configuration from a TOML file on top of the defaults
func Load(configPath string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}

	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from file. A file that does not exist
// yields the defaults and usingDefaults=true; any other failure (unreadable,
// undecodable or invalid file) is returned so the caller can refuse to start.
func LoadOrDefault(configPath string) (config *Config, usingDefaults bool, err error) {
	config, err = Load(configPath)
	if err == nil {
		return config, false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), true, nil
	}
	return nil, false, err
}

// Default returns the built-in configuration: 0.0.0.0:5000, info logs as JSON
// on stdout, rate limiting and metrics off.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              5000,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       90 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 100,
			Window:            1 * time.Minute,
			ClientExpiry:      5 * time.Minute,
			TrustProxyHeaders: false,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9100",
			Namespace:  "hello_server",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 ||
		c.Server.IdleTimeout < 0 || c.Server.ReadHeaderTimeout < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid logger level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logger.Format] {
		return fmt.Errorf("invalid logger format: %s (must be json or text)", c.Logger.Format)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond < 1 {
			return fmt.Errorf("rate limit requests_per_second must be at least 1")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
		if c.RateLimit.ClientExpiry < c.RateLimit.Window {
			return fmt.Errorf("rate limit client_expiry must not be shorter than window")
		}
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("invalid metrics listen_addr %q: %w", c.Metrics.ListenAddr, err)
		}
		if c.Metrics.ListenAddr == c.GetListenAddr() {
			return fmt.Errorf("metrics listen_addr must differ from the server address")
		}
	}

	return nil
}

// GetListenAddr returns the formatted listen address
func (c *Config) GetListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
