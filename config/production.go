// Package config provides environment-driven configuration for the service.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goleador/traffilink-dispatch/utils"
)

// ProductionConfig is the root configuration loaded from the environment.
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Cache      CacheConfig      `json:"cache"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Traffilink TraffilinkConfig `json:"traffilink"`
	Queue      QueueConfig      `json:"queue"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Security   SecurityConfig   `json:"security"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type CacheConfig struct {
	Enabled  bool          `json:"enabled"`
	RedisURL string        `json:"redis_url"`
	TTL      time.Duration `json:"ttl"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	Dir        string `json:"dir"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TraffilinkConfig configures the bulk SMS provider client.
type TraffilinkConfig struct {
	BaseURL       string        `json:"base_url"`
	APIKey        string        `json:"api_key"`
	DefaultSender string        `json:"default_sender"`
	GETTimeout    time.Duration `json:"get_timeout"`
	POSTTimeout   time.Duration `json:"post_timeout"`
	// Mock replaces the HTTP client with the in-memory provider.
	Mock bool `json:"mock"`
}

type QueueConfig struct {
	Capacity      int     `json:"capacity"`
	Workers       int     `json:"workers"`
	MaxAttempts   int     `json:"max_attempts"`
	RatePerSecond float64 `json:"rate_per_second"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `json:"poll_interval"`
}

type SecurityConfig struct {
	RequireAPIKey   bool          `json:"require_api_key"`
	APIKeyHeader    string        `json:"api_key_header"`
	AllowedAPIKeys  []string      `json:"allowed_api_keys"`
	GlobalRateLimit int           `json:"global_rate_limit"`
	RateLimitWindow time.Duration `json:"rate_limit_window"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "traffilink"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", true),
			RedisURL: getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			TTL:      getEnvDuration("CACHE_DEFAULT_TTL", time.Minute),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Dir:        getEnvString("LOG_DIR", "data"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Traffilink: TraffilinkConfig{
			BaseURL:       getEnvString("TRAFFILINK_BASE_URL", "https://api.traffilink.com"),
			APIKey:        getEnvString("TRAFFILINK_API_KEY", ""),
			DefaultSender: getEnvString("TRAFFILINK_DEFAULT_SENDER", ""),
			GETTimeout:    getEnvDuration("TRAFFILINK_GET_TIMEOUT", utils.ProviderGETTimeout),
			POSTTimeout:   getEnvDuration("TRAFFILINK_POST_TIMEOUT", utils.ProviderPOSTTimeout),
			Mock:          getEnvBool("TRAFFILINK_MOCK", false),
		},
		Queue: QueueConfig{
			Capacity:      getEnvInt("QUEUE_CAPACITY", utils.DefaultQueueCapacity),
			Workers:       getEnvInt("QUEUE_WORKERS", utils.DefaultQueueWorkers),
			MaxAttempts:   getEnvInt("QUEUE_MAX_ATTEMPTS", utils.DefaultQueueMaxAttempts),
			RatePerSecond: float64(getEnvInt("QUEUE_RATE_PER_SECOND", int(utils.DefaultQueueRate))),
		},
		Scheduler: SchedulerConfig{
			PollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", utils.DefaultSchedulerPollInterval),
		},
		Security: SecurityConfig{
			RequireAPIKey:   getEnvBool("REQUIRE_API_KEY", false),
			APIKeyHeader:    getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:  getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
			GlobalRateLimit: getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if !cfg.Traffilink.Mock {
		if cfg.Traffilink.BaseURL == "" {
			errs = append(errs, "TRAFFILINK_BASE_URL is required")
		}
		if cfg.Traffilink.APIKey == "" {
			errs = append(errs, "TRAFFILINK_API_KEY is required")
		}
	}
	if cfg.Queue.Capacity <= 0 {
		errs = append(errs, "QUEUE_CAPACITY must be positive")
	}
	if cfg.Queue.Workers <= 0 {
		errs = append(errs, "QUEUE_WORKERS must be positive")
	}
	if cfg.Scheduler.PollInterval <= 0 {
		errs = append(errs, "SCHEDULER_POLL_INTERVAL must be positive")
	}
	if cfg.Security.RequireAPIKey && len(cfg.Security.AllowedAPIKeys) == 0 && !cfg.Cache.Enabled {
		errs = append(errs, "ALLOWED_API_KEYS is required when REQUIRE_API_KEY is set without a cache")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
