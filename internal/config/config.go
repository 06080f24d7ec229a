// Package config provides configuration for the hub.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Log sources for log_get.
const (
	LogSourcePlaceholder = "placeholder"
	LogSourceStore       = "store"
)

// Config holds the hub configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Agents
	AgentTimeout         time.Duration `yaml:"-"`
	AgentRefreshInterval time.Duration `yaml:"-"`

	// Agent websocket links
	WSPingInterval   time.Duration `yaml:"-"`
	WSWriteTimeout   time.Duration `yaml:"-"`
	WSReadTimeout    time.Duration `yaml:"-"`
	WSMaxMessageSize int64         `yaml:"ws_max_message_size"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Dashboard logs
	LogSource      string `yaml:"log_source"`
	LogPageSize    int    `yaml:"log_page_size"`
	LogMaxPageSize int    `yaml:"log_max_page_size"`
}

// fileConfig is the YAML layout. Durations are milliseconds like their
// environment counterparts.
type fileConfig struct {
	Config                 `yaml:",inline"`
	AgentTimeoutMs         int `yaml:"agent_timeout_ms"`
	AgentRefreshIntervalMs int `yaml:"agent_refresh_interval_ms"`
	WSPingIntervalMs       int `yaml:"ws_ping_interval_ms"`
	WSWriteTimeoutMs       int `yaml:"ws_write_timeout_ms"`
	WSReadTimeoutMs        int `yaml:"ws_read_timeout_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:             8080,
		DatabaseURL:          "file:hub.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL",
		AgentTimeout:         30 * time.Second,
		AgentRefreshInterval: 5 * time.Second,
		WSPingInterval:       30 * time.Second,
		WSWriteTimeout:       10 * time.Second,
		WSReadTimeout:        60 * time.Second,
		WSMaxMessageSize:     1 << 20,
		LogLevel:             "info",
		LogSource:            LogSourcePlaceholder,
		LogPageSize:          100,
		LogMaxPageSize:       1000,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// HUB_CONFIG_FILE and environment variables, in increasing precedence. A .env
// file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("HUB_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("error loading config from %s: %w", path, err)
	}
	*c = fc.Config
	setMillis(&c.AgentTimeout, fc.AgentTimeoutMs)
	setMillis(&c.AgentRefreshInterval, fc.AgentRefreshIntervalMs)
	setMillis(&c.WSPingInterval, fc.WSPingIntervalMs)
	setMillis(&c.WSWriteTimeout, fc.WSWriteTimeoutMs)
	setMillis(&c.WSReadTimeout, fc.WSReadTimeoutMs)
	return nil
}

func (c *Config) loadEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.AgentTimeout = getEnvMillis("AGENT_TIMEOUT_MS", c.AgentTimeout)
	c.AgentRefreshInterval = getEnvMillis("AGENT_REFRESH_INTERVAL_MS", c.AgentRefreshInterval)
	c.WSPingInterval = getEnvMillis("WS_PING_INTERVAL_MS", c.WSPingInterval)
	c.WSWriteTimeout = getEnvMillis("WS_WRITE_TIMEOUT_MS", c.WSWriteTimeout)
	c.WSReadTimeout = getEnvMillis("WS_READ_TIMEOUT_MS", c.WSReadTimeout)
	c.WSMaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(c.WSMaxMessageSize)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogSource = getEnv("LOG_SOURCE", c.LogSource)
	c.LogPageSize = getEnvInt("LOG_PAGE_SIZE", c.LogPageSize)
	c.LogMaxPageSize = getEnvInt("LOG_MAX_PAGE_SIZE", c.LogMaxPageSize)
}

// Validate rejects settings the hub cannot run with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT %d", c.HTTPPort)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.LogSource {
	case LogSourcePlaceholder, LogSourceStore:
	default:
		return fmt.Errorf("invalid LOG_SOURCE %q, want %q or %q", c.LogSource, LogSourcePlaceholder, LogSourceStore)
	}
	if c.LogPageSize < 0 || c.LogMaxPageSize < 0 {
		return errors.New("log page sizes must not be negative")
	}
	if c.LogMaxPageSize > 0 && c.LogPageSize > c.LogMaxPageSize {
		return fmt.Errorf("LOG_PAGE_SIZE %d exceeds LOG_MAX_PAGE_SIZE %d", c.LogPageSize, c.LogMaxPageSize)
	}
	return nil
}

func setMillis(d *time.Duration, ms int) {
	if ms > 0 {
		*d = time.Duration(ms) * time.Millisecond
	}
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

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if ms := getEnvInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
