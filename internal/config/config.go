package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Data backends.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

// Snapshot backends.
const (
	SnapshotFile   = "file"
	SnapshotSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Remote spreadsheets
	DataBackend     string
	MemoryDataDir   string
	MainSheetURL    string
	SalesSheetURL   string
	CredentialsJSON string

	// Snapshots
	SnapshotBackend string
	SnapshotDir     string
	SQLiteDBPath    string

	// Fetching
	FetchCacheTTL time.Duration
	FetchTimeout  time.Duration
	FetchRetries  int
	Timezone      string

	// AMQP, optional. An empty URL refreshes in-process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RefreshInterval time.Duration

	// Refresh requests per client per minute
	RefreshRateLimit int
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend:     getEnv("DATA_BACKEND", BackendSheets),
		MemoryDataDir:   getEnv("MEMORY_DATA_DIR", ""),
		MainSheetURL:    getEnv("MAIN_SHEET_URL", ""),
		SalesSheetURL:   getEnv("SALES_SHEET_URL", ""),
		CredentialsJSON: getEnv("GSPREAD_CREDENTIALS_JSON", ""),

		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", SnapshotFile),
		SnapshotDir:     getEnv("SNAPSHOT_DIR", "./data/snapshots"),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/posreports.db"),

		FetchCacheTTL: getEnvDuration("FETCH_CACHE_TTL", 5*time.Minute),
		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchRetries:  getEnvInt("FETCH_RETRIES", 2),
		Timezone:      getEnv("TIMEZONE", "Africa/Cairo"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "posreports"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "refresh_sheets"),

		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", 15*time.Minute),
		RefreshRateLimit: getEnvInt("REFRESH_RATE_LIMIT", 6),
	}
}

// Location resolves Timezone, falling back to UTC when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error if invalid.
// Missing sheet links are not an error: they surface as diagnostics when the
// sheet is fetched.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	switch c.DataBackend {
	case BackendSheets:
	case BackendMemory:
		if c.MemoryDataDir != "" {
			if info, err := os.Stat(c.MemoryDataDir); err != nil || !info.IsDir() {
				errors = append(errors, fmt.Sprintf("memory data directory does not exist: %s", c.MemoryDataDir))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendSheets, BackendMemory))
	}

	switch c.SnapshotBackend {
	case SnapshotFile:
		if c.SnapshotDir == "" {
			errors = append(errors, "snapshot directory cannot be empty when using file snapshots")
		}
	case SnapshotSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite snapshots")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid snapshot backend '%s': must be one of [%s %s]", c.SnapshotBackend, SnapshotFile, SnapshotSQLite))
	}

	if c.FetchCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch cache TTL %v: must be positive", c.FetchCacheTTL))
	}
	if c.FetchTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must not be negative", c.FetchTimeout))
	}
	if c.FetchRetries < 0 || c.FetchRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid fetch retries %d: must be between 0 and 10", c.FetchRetries))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
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

	if c.RefreshInterval != 0 && c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 1 minute", c.RefreshInterval))
	}
	if c.RefreshRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh rate limit %d: must be at least 1", c.RefreshRateLimit))
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
