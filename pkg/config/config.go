package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Provider
	Provider ProviderConfig

	// Ranking
	Ranking RankingConfig

	// Scheduler
	CollectSchedule string // cron expression for the daily collect job

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds the SQLite configuration
type DatabaseConfig struct {
	Path        string // file path of the database, ":memory:" for tests
	BusyTimeout time.Duration
}

// ProviderConfig holds the market-data provider configuration
type ProviderConfig struct {
	QuoteBaseURL  string // kline/quote JSON endpoints
	MemberBaseURL string // board membership HTML pages
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
}

// RankingConfig holds defaults for the ranking and velocity operations
type RankingConfig struct {
	Universe     []string // default board ids to rank
	BenchmarkID  string
	HistoryDays  int           // calendar days of history fetched per entity
	FetchWorkers int           // bounded worker pool size
	FetchDelay   time.Duration // pause between remote-bound ranking runs
}

// Load reads configuration from environment variables
// SSOT: this is the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Path:        getEnv("DB_PATH", "data/sectorpulse.db"),
			BusyTimeout: getEnvAsDuration("DB_BUSY_TIMEOUT", "5s"),
		},

		Provider: ProviderConfig{
			QuoteBaseURL:  getEnv("PROVIDER_QUOTE_BASE_URL", "https://push2his.eastmoney.com"),
			MemberBaseURL: getEnv("PROVIDER_MEMBER_BASE_URL", "https://quote.eastmoney.com"),
			RatePerSecond: getEnvAsFloat("PROVIDER_RATE_PER_SECOND", 5),
			Burst:         getEnvAsInt("PROVIDER_BURST", 5),
			Timeout:       getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
		},

		Ranking: RankingConfig{
			Universe:     getEnvAsList("RANKING_UNIVERSE", nil),
			BenchmarkID:  getEnv("RANKING_BENCHMARK_ID", "000300"),
			HistoryDays:  getEnvAsInt("RANKING_HISTORY_DAYS", 20),
			FetchWorkers: getEnvAsInt("RANKING_FETCH_WORKERS", 4),
			FetchDelay:   getEnvAsDuration("RANKING_FETCH_DELAY", "500ms"),
		},

		CollectSchedule: getEnv("COLLECT_SCHEDULE", "0 30 15 * * MON-FRI"),

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Provider.RatePerSecond <= 0 {
		return fmt.Errorf("PROVIDER_RATE_PER_SECOND must be positive")
	}

	if c.Ranking.FetchWorkers < 1 {
		return fmt.Errorf("RANKING_FETCH_WORKERS must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
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

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
