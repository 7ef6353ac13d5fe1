package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tickerSignal/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Ticker Store. A postgres:// or postgresql:// URL selects Postgres,
	// anything else is treated as a SQLite path.
	DatabaseURL string

	// HTTP API
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Default SMA windows
	Windows domain.Windows

	// Logging
	LogLevel  string // DEBUG, INFO, WARN, ERROR
	LogFormat string // console, json, plain

	// Signal publishing (disabled when RedisAddr is empty)
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisPrefix        string
	RedisSignalStream  string
	RedisSignalChannel string
	RedisLatestTTL     time.Duration

	// Binance API (public klines only; keys are optional)
	APIKey    string
	SecretKey string
	IsTestnet bool
}

// UsesPostgres reports whether DatabaseURL points at a Postgres server.
func (c *Config) UsesPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// RedisEnabled reports whether signals should be published to Redis.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// LoadConfig loads configuration from environment variables (.env file),
// layered over the TOML file named by CONFIG_FILE when set.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration with path as the TOML config file. An
// empty path falls back to CONFIG_FILE. Environment variables take
// precedence over file values, which take precedence over defaults.
func LoadConfigFrom(path string) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	src := source{}
	if path != "" {
		values, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Ticker Store
	cfg.DatabaseURL = src.get("DATABASE_URL", "./data/tickers.db")

	// HTTP API
	cfg.HTTPAddr = src.get("HTTP_ADDR", ":8000")
	readSeconds, err := src.getIntRequired("READ_TIMEOUT_SECONDS", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid READ_TIMEOUT_SECONDS: %v", err))
	} else if readSeconds <= 0 {
		errs = append(errs, "READ_TIMEOUT_SECONDS must be positive")
	}
	cfg.ReadTimeout = time.Duration(readSeconds) * time.Second

	writeSeconds, err := src.getIntRequired("WRITE_TIMEOUT_SECONDS", 30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WRITE_TIMEOUT_SECONDS: %v", err))
	} else if writeSeconds <= 0 {
		errs = append(errs, "WRITE_TIMEOUT_SECONDS must be positive")
	}
	cfg.WriteTimeout = time.Duration(writeSeconds) * time.Second

	// SMA windows
	cfg.Windows.Short, err = src.getIntRequired("SHORT_WINDOW", domain.DefaultWindows.Short)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SHORT_WINDOW: %v", err))
	}
	cfg.Windows.Long, err = src.getIntRequired("LONG_WINDOW", domain.DefaultWindows.Long)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LONG_WINDOW: %v", err))
	}
	if err := cfg.Windows.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("SHORT_WINDOW/LONG_WINDOW: %v", err))
	}

	// Logging
	cfg.LogLevel, err = ParseLogLevel(src.get("LOG_LEVEL", "INFO"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %v", err))
	}
	cfg.LogFormat = strings.ToLower(src.get("LOG_FORMAT", "console"))
	switch cfg.LogFormat {
	case "console", "json", "plain":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of console, json, plain; got %q", cfg.LogFormat))
	}

	// Redis
	cfg.RedisAddr = src.get("REDIS_ADDR", "")
	cfg.RedisPassword = src.get("REDIS_PASSWORD", "")
	cfg.RedisDB, err = src.getIntRequired("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REDIS_DB: %v", err))
	} else if cfg.RedisDB < 0 {
		errs = append(errs, "REDIS_DB cannot be negative")
	}
	cfg.RedisPrefix = src.get("REDIS_PREFIX", "tickersignal")
	cfg.RedisSignalStream = src.get("REDIS_SIGNAL_STREAM", "")
	cfg.RedisSignalChannel = src.get("REDIS_SIGNAL_CHANNEL", "")
	ttlSeconds := src.getInt("REDIS_LATEST_TTL_SECONDS", 0)
	if ttlSeconds < 0 {
		errs = append(errs, "REDIS_LATEST_TTL_SECONDS cannot be negative")
	}
	cfg.RedisLatestTTL = time.Duration(ttlSeconds) * time.Second

	// Binance API
	cfg.APIKey = src.get("BINANCE_API_KEY", "")
	cfg.SecretKey = src.get("BINANCE_API_SECRET", "")
	cfg.IsTestnet = src.getBool("IS_TESTNET", false)

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) get(key, defaultValue string) string {
	value := s.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (s source) getInt(key string, defaultValue int) int {
	value, err := s.getIntRequired(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s source) getIntRequired(key string, defaultValue int) (int, error) {
	valueStr := s.lookup(key)
	if valueStr == "" {
		// Use default if the key is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if the key is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func (s source) getBool(key string, defaultValue bool) bool {
	valueStr := s.lookup(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseLogLevel upper-cases level and checks it is a known log level.
func ParseLogLevel(level string) (string, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	switch level {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		return level, nil
	default:
		return level, fmt.Errorf("must be one of DEBUG, INFO, WARN, ERROR; got %q", level)
	}
}
