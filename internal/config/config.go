package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Database
	DBDriver     string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP; an empty URL keeps reminders in process
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sweeps
	InterestInterval time.Duration
	ReminderInterval time.Duration
	ReminderWindow   time.Duration
	ItemTimeout      time.Duration

	// Category cache
	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	DefaultCurrency string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		DBDriver:     getEnv("DB_DRIVER", DriverSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "reminders"),

		InterestInterval: getEnvDuration("INTEREST_INTERVAL", time.Hour),
		ReminderInterval: getEnvDuration("REMINDER_INTERVAL", time.Minute),
		ReminderWindow:   getEnvDuration("REMINDER_WINDOW", 5*time.Minute),
		ItemTimeout:      getEnvDuration("SWEEP_ITEM_TIMEOUT", 30*time.Second),

		CategoryCacheSize: getEnvInt("CATEGORY_CACHE_SIZE", 1000),
		CategoryCacheTTL:  getEnvDuration("CATEGORY_CACHE_TTL", time.Hour),

		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite driver")
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
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres driver")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid database URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [%s %s]", c.DBDriver, DriverSQLite, DriverPostgres))
	}

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

	if c.InterestInterval < time.Minute || c.InterestInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid interest interval %v: must be between 1 minute and 24 hours", c.InterestInterval))
	}
	if c.ReminderInterval < time.Second || c.ReminderInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder interval %v: must be between 1 second and 1 hour", c.ReminderInterval))
	}
	// A window shorter than the tick would let reminders fall between ticks.
	if c.ReminderWindow < c.ReminderInterval {
		errors = append(errors, fmt.Sprintf("invalid reminder window %v: must be at least the reminder interval %v", c.ReminderWindow, c.ReminderInterval))
	}
	if c.ItemTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep item timeout %v: must be at least 1 second", c.ItemTimeout))
	}

	if c.CategoryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid category cache size %d: must be at least 1", c.CategoryCacheSize))
	}
	if c.CategoryCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid category cache ttl %v: must be positive", c.CategoryCacheTTL))
	}

	if !currencyPattern.MatchString(c.DefaultCurrency) {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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
