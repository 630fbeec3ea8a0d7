package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Store backend selection. DATABASE_URL wins over REDIS_URL; with
	// neither set, development falls back to SQLite and production to an
	// in-memory store is refused.
	DatabaseURL string
	RedisURL    string
	SQLitePath  string

	// StoreTimeout bounds gate-protected store I/O per operation.
	StoreTimeout time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),
		StoreTimeout: getDuration("STORE_TIMEOUT", 5*time.Second),
	}

	// In production, require a durable backend
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" && cfg.RedisURL == "" {
			panic("DATABASE_URL or REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
