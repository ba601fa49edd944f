// Package config provides configuration for the registry server.
//
// Settings come from an optional TOML file, overridden by environment
// variables (BEACON_*). Nothing is persisted: the registry holds no data
// across restarts, so configuration is the only state read at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Default settings.
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8000
	DefaultHeartbeatTimeout = 30 * time.Second
	DefaultSweepInterval    = 10 * time.Second
)

// Config holds the registry server configuration.
type Config struct {
	// Host and Port for the HTTP listener.
	Host string `toml:"host"`
	Port int    `toml:"port"`

	// HeartbeatTimeoutSeconds is how long an agent may stay silent
	// before the sweeper evicts it.
	HeartbeatTimeoutSeconds int `toml:"heartbeat_timeout_seconds"`

	// SweepIntervalSeconds is the pause between sweep cycles.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`

	// LogLevel: debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// NATSURL enables event publishing over NATS when set.
	// Empty means events stay on the in-process bus only.
	NATSURL string `toml:"nats_url"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Host:                    DefaultHost,
		Port:                    DefaultPort,
		HeartbeatTimeoutSeconds: int(DefaultHeartbeatTimeout / time.Second),
		SweepIntervalSeconds:    int(DefaultSweepInterval / time.Second),
		LogLevel:                "info",
	}
}

// Load reads configuration from path (optional, "" skips the file) and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}

	cfg.Host = getEnv("BEACON_HOST", cfg.Host)
	cfg.Port = getEnvInt("BEACON_PORT", cfg.Port)
	cfg.HeartbeatTimeoutSeconds = getEnvInt("BEACON_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeoutSeconds)
	cfg.SweepIntervalSeconds = getEnvInt("BEACON_SWEEP_INTERVAL", cfg.SweepIntervalSeconds)
	cfg.LogLevel = getEnv("BEACON_LOG_LEVEL", cfg.LogLevel)
	cfg.NATSURL = getEnv("BEACON_NATS_URL", cfg.NATSURL)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", c.Port)
	}
	if c.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("heartbeat_timeout_seconds must be positive, got %d", c.HeartbeatTimeoutSeconds)
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("sweep_interval_seconds must be positive, got %d", c.SweepIntervalSeconds)
	}
	return nil
}

// HeartbeatTimeout returns the eviction timeout as a duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// Addr returns the host:port bind address for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
