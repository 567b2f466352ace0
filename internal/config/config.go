package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	OctoPrint OctoPrintConfig
	Settings  SettingsConfig
	Redis     RedisConfig
	Feed      FeedConfig
	LogLevel  string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  int
	WriteTimeout int
	StaticDir    string // prebuilt dashboard bundle, empty disables static serving
}

// OctoPrintConfig holds the upstream defaults used when no settings are saved
type OctoPrintConfig struct {
	DefaultURL    string
	DefaultAPIKey string
	Timeout       int // seconds per outbound call
}

// SettingsConfig selects where connection settings are persisted
type SettingsConfig struct {
	Backend string
	Path    string
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SettingsKey string
}

// FeedConfig holds the live status feed timings
type FeedConfig struct {
	PollInterval   time.Duration
	ReconnectDelay time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (optional)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			StaticDir:    getEnv("STATIC_DIR", ""),
		},
		OctoPrint: OctoPrintConfig{
			DefaultURL:    getEnv("OCTOPRINT_URL", "http://localhost:5000"),
			DefaultAPIKey: getEnv("OCTOPRINT_API_KEY", ""),
			Timeout:       getEnvAsInt("OCTOPRINT_TIMEOUT", 10),
		},
		Settings: SettingsConfig{
			Backend: strings.ToLower(getEnv("SETTINGS_BACKEND", BackendFile)),
			Path:    getEnv("SETTINGS_PATH", "data/settings.json"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			SettingsKey: getEnv("REDIS_SETTINGS_KEY", "octodash:settings"),
		},
		Feed: FeedConfig{
			PollInterval:   getEnvAsMillis("FEED_POLL_INTERVAL_MS", 2000),
			ReconnectDelay: getEnvAsMillis("FEED_RECONNECT_DELAY_MS", 3000),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.Settings.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown SETTINGS_BACKEND %q (want file, memory or redis)", cfg.Settings.Backend)
	}

	return cfg, nil
}

// UpstreamTimeout returns the outbound call timeout as a duration
func (c OctoPrintConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsMillis reads a positive millisecond count as a duration
func getEnvAsMillis(key string, defaultMillis int) time.Duration {
	ms := getEnvAsInt(key, defaultMillis)
	if ms <= 0 {
		ms = defaultMillis
	}
	return time.Duration(ms) * time.Millisecond
}
