package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// External services
	CLOB    CLOBConfig
	DataAPI DataAPIConfig
	Relayer RelayerConfig

	// Trading behavior
	Trading TradingConfig

	// Infrastructure
	Database DatabaseConfig
	Redis    RedisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// CLOBConfig holds order book API configuration.
type CLOBConfig struct {
	BaseURL    string
	WSURL      string
	APIKey     string
	APISecret  string
	Passphrase string
	Funder     string // proxy wallet holding collateral
}

// DataAPIConfig holds position/balance source configuration.
type DataAPIConfig struct {
	BaseURL string
	Wallet  string // resolved wallet address; key custody is out of scope

	// Poll throttle for the positions endpoint
	RateLimit  int
	RateWindow time.Duration
}

// RelayerConfig holds redemption service configuration.
type RelayerConfig struct {
	BaseURL string
}

// TradingConfig holds order validation and reconciliation parameters.
type TradingConfig struct {
	MinNotional     float64       // minimum dollar amount for a BUY
	DustMinSize     float64       // absolute share floor below which positions are hidden
	DustThreshold   float64       // market-value threshold for hide-dust filtering
	GTDSafetyBuffer time.Duration // added to GTD expirations so orders survive propagation
	QuoteTTL        time.Duration // tick-size cache freshness window
	PollInterval    time.Duration // settlement poll cadence
	PollBudget      time.Duration // total settlement poll duration before timing out
	SnapshotTTL     time.Duration // position/balance snapshot freshness window
}

// DatabaseConfig holds PostgreSQL configuration for the order journal.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		CLOB: CLOBConfig{
			BaseURL:    getEnv("CLOB_BASE_URL", "https://clob.predictdesk.io"),
			WSURL:      getEnv("CLOB_WS_URL", "wss://ws.predictdesk.io/user"),
			APIKey:     getEnv("CLOB_API_KEY", ""),
			APISecret:  getEnv("CLOB_API_SECRET", ""),
			Passphrase: getEnv("CLOB_PASSPHRASE", ""),
			Funder:     getEnv("CLOB_FUNDER_ADDRESS", ""),
		},

		DataAPI: DataAPIConfig{
			BaseURL:    getEnv("DATA_API_BASE_URL", "https://data.predictdesk.io"),
			Wallet:     getEnv("WALLET_ADDRESS", ""),
			RateLimit:  getEnvAsInt("DATA_API_RATE_LIMIT", 10),
			RateWindow: getEnvAsDuration("DATA_API_RATE_WINDOW", "1s"),
		},

		Relayer: RelayerConfig{
			BaseURL: getEnv("RELAYER_BASE_URL", "https://relayer.predictdesk.io"),
		},

		Trading: TradingConfig{
			MinNotional:     getEnvAsFloat("TRADING_MIN_NOTIONAL", 1.00),
			DustMinSize:     getEnvAsFloat("TRADING_DUST_MIN_SIZE", 0.01),
			DustThreshold:   getEnvAsFloat("TRADING_DUST_THRESHOLD", 1.00),
			GTDSafetyBuffer: getEnvAsDuration("TRADING_GTD_SAFETY_BUFFER", "60s"),
			QuoteTTL:        getEnvAsDuration("TRADING_QUOTE_TTL", "5m"),
			PollInterval:    getEnvAsDuration("TRADING_POLL_INTERVAL", "3s"),
			PollBudget:      getEnvAsDuration("TRADING_POLL_BUDGET", "45s"),
			SnapshotTTL:     getEnvAsDuration("TRADING_SNAPSHOT_TTL", "30s"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Trading.MinNotional <= 0 {
		return fmt.Errorf("TRADING_MIN_NOTIONAL must be positive")
	}

	if c.Trading.PollInterval <= 0 || c.Trading.PollBudget <= 0 {
		return fmt.Errorf("settlement poll interval and budget must be positive")
	}

	if c.Trading.PollInterval >= c.Trading.PollBudget {
		return fmt.Errorf("TRADING_POLL_INTERVAL must be shorter than TRADING_POLL_BUDGET")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
