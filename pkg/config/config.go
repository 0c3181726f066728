package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional cache / rate limiting)
	Redis RedisConfig

	// External services
	Jisilu JisiluConfig
	Coze   CozeConfig

	// Pipeline policy
	Analysis AnalysisConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

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

// JisiluConfig holds the jisilu.cn fund list endpoints.
type JisiluConfig struct {
	BaseURL  string
	LOFPath  string
	QDIIPath string
	Cookie   string
	// Requests per second against jisilu.cn.
	RateLimit float64
}

// CozeConfig holds the Coze chat API configuration.
// Token and BotID may be empty; the pipeline run aborts without them
// but the process stays up.
type CozeConfig struct {
	BaseURL  string
	APIToken string
	BotID    string
	UserID   string
	Timeout  time.Duration
}

// AnalysisConfig holds the arbitrage screening policy.
// The threshold and status literals are business policy; the comparison
// semantics (strictly greater than, exact redeem match) are not.
type AnalysisConfig struct {
	Schedule             string  // cron expression with seconds field
	SortField            string  // discount_rt or premium_rt
	MinPremiumRate       float64 // strict lower bound, percent
	SuspendedApplyStatus string
	OpenRedeemStatus     string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "arbitrage_fund"),
			User:            getEnv("DB_USER", "arbitrage_fund"),
			Password:        getEnv("DB_PASSWORD", ""),
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

		Jisilu: JisiluConfig{
			BaseURL:   getEnv("JISILU_BASE_URL", "https://www.jisilu.cn"),
			LOFPath:   getEnv("JISILU_LOF_PATH", "/data/lof/index_lof_list/"),
			QDIIPath:  getEnv("JISILU_QDII_PATH", "/data/qdii/qdii_list/E"),
			Cookie:    getEnv("JISILU_COOKIE", ""),
			RateLimit: getEnvAsFloat("JISILU_RATE_LIMIT", 2),
		},

		Coze: CozeConfig{
			BaseURL:  getEnv("COZE_BASE_URL", "https://api.coze.cn"),
			APIToken: getEnv("COZE_API_TOKEN", ""),
			BotID:    getEnv("COZE_BOT_ID", ""),
			UserID:   getEnv("COZE_USER_ID", "123456789"),
			Timeout:  getEnvAsDuration("COZE_TIMEOUT", "5m"),
		},

		Analysis: AnalysisConfig{
			Schedule:             getEnv("ANALYSIS_SCHEDULE", "0 0 9 * * *"),
			SortField:            getEnv("ANALYSIS_SORT_FIELD", "discount_rt"),
			MinPremiumRate:       getEnvAsFloat("ANALYSIS_MIN_PREMIUM_RT", 4.0),
			SuspendedApplyStatus: getEnv("ANALYSIS_SUSPENDED_APPLY_STATUS", "暂停申购"),
			OpenRedeemStatus:     getEnv("ANALYSIS_OPEN_REDEEM_STATUS", "开放赎回"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.buildURL()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// buildURL assembles a postgres URL from the individual fields.
func (d DatabaseConfig) buildURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	return u.String()
}

// validate checks required configuration values. Coze credentials are
// deliberately not required here: their absence aborts a pipeline run,
// not process startup.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analysis.SortField != "discount_rt" && c.Analysis.SortField != "premium_rt" {
		return fmt.Errorf("ANALYSIS_SORT_FIELD must be discount_rt or premium_rt")
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
