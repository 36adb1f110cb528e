package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// DefaultCurrencySymbol is the Bangladeshi taka sign.
const DefaultCurrencySymbol = "৳"

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	CurrencySymbol     string

	// Sessions
	SessionBackend         string
	SQLiteDBPath           string
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration
	MaxSessions            int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	StatsInterval time.Duration

	// Logging
	LogLevel string
}

// fileConfig mirrors Config for the optional TOML file. Durations are
// written as Go duration strings ("12h", "90s").
type fileConfig struct {
	Port                   string `toml:"port"`
	RateLimitPerMinute     int    `toml:"rate_limit_per_minute"`
	CurrencySymbol         string `toml:"currency_symbol"`
	SessionBackend         string `toml:"session_backend"`
	SQLiteDBPath           string `toml:"sqlite_db_path"`
	SessionTTL             string `toml:"session_ttl"`
	SessionCleanupInterval string `toml:"session_cleanup_interval"`
	MaxSessions            int    `toml:"max_sessions"`
	AMQPURL                string `toml:"amqp_url"`
	AMQPExchange           string `toml:"amqp_exchange"`
	AMQPQueue              string `toml:"amqp_queue"`
	StatsInterval          string `toml:"stats_interval"`
	LogLevel               string `toml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Port:                   "8081",
		RateLimitPerMinute:     60,
		CurrencySymbol:         DefaultCurrencySymbol,
		SessionBackend:         BackendMemory,
		SQLiteDBPath:           "./data/devexpense.db",
		SessionTTL:             12 * time.Hour,
		SessionCleanupInterval: 10 * time.Minute,
		MaxSessions:            10000,
		AMQPExchange:           "devexpense",
		AMQPQueue:              "calculations",
		StatsInterval:          time.Minute,
		LogLevel:               "info",
	}
}

// Load reads the configuration from the environment on top of the defaults.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadWithFile applies the TOML file at path (if any) and then the
// environment, so env vars always win.
func LoadWithFile(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.CurrencySymbol, fc.CurrencySymbol)
	setString(&c.SessionBackend, fc.SessionBackend)
	setString(&c.SQLiteDBPath, fc.SQLiteDBPath)
	setString(&c.AMQPURL, fc.AMQPURL)
	setString(&c.AMQPExchange, fc.AMQPExchange)
	setString(&c.AMQPQueue, fc.AMQPQueue)
	setString(&c.LogLevel, fc.LogLevel)
	if fc.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = fc.RateLimitPerMinute
	}
	if fc.MaxSessions != 0 {
		c.MaxSessions = fc.MaxSessions
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"session_ttl", fc.SessionTTL, &c.SessionTTL},
		{"session_cleanup_interval", fc.SessionCleanupInterval, &c.SessionCleanupInterval},
		{"stats_interval", fc.StatsInterval, &c.StatsInterval},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse config file %s: %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.CurrencySymbol = getEnv("CURRENCY_SYMBOL", c.CurrencySymbol)

	c.SessionBackend = getEnv("SESSION_BACKEND", c.SessionBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", c.SessionCleanupInterval)
	c.MaxSessions = getEnvInt("MAX_SESSIONS", c.MaxSessions)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.StatsInterval = getEnvDuration("STATS_INTERVAL", c.StatsInterval)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// AMQPEnabled reports whether calculation events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate session backend
	validBackends := []string{BackendMemory, BackendSQLite}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.SessionBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, validBackends))
	}

	if c.SessionBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at least 1 second", c.SessionCleanupInterval))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if strings.TrimSpace(c.CurrencySymbol) == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.StatsInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid stats interval %v: must be at least 1 second", c.StatsInterval))
	} else if c.StatsInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid stats interval %v: must be at most 24 hours", c.StatsInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
