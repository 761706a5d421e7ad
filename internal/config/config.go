// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/sentinel-dashboard/internal/utils"
)

// Config holds application configuration
type Config struct {
	APIURL   string // Backend API root, e.g. "http://localhost:5000/api"
	DataDir  string // Directory holding client_data.db (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	HTTPTimeout  time.Duration
	BatchWindow  time.Duration // Coalescing window for concurrent public reads; 0 disables coalescing
	BatchMaxSize int

	SessionCheckInterval time.Duration
	UIRefreshInterval    time.Duration
	CacheSweepInterval   time.Duration
	AuthRefreshBuffer    time.Duration

	CORSOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SENTINEL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		APIURL:   strings.TrimRight(getEnv("SENTINEL_API_URL", "http://localhost:5000/api"), "/"),
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GO_PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		HTTPTimeout:  getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),
		BatchWindow:  getEnvAsDuration("BATCH_WINDOW", 10*time.Millisecond),
		BatchMaxSize: getEnvAsInt("BATCH_MAX_SIZE", 25),

		SessionCheckInterval: getEnvAsDuration("SESSION_CHECK_INTERVAL", time.Minute),
		UIRefreshInterval:    getEnvAsDuration("UI_REFRESH_INTERVAL", time.Minute),
		CacheSweepInterval:   getEnvAsDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
		AuthRefreshBuffer:    getEnvAsDuration("AUTH_REFRESH_BUFFER", 300*time.Second),

		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid SENTINEL_API_URL %q", c.APIURL)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}

	positive := map[string]time.Duration{
		"HTTP_TIMEOUT":           c.HTTPTimeout,
		"SESSION_CHECK_INTERVAL": c.SessionCheckInterval,
		"UI_REFRESH_INTERVAL":    c.UIRefreshInterval,
		"CACHE_SWEEP_INTERVAL":   c.CacheSweepInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.BatchWindow < 0 {
		return fmt.Errorf("BATCH_WINDOW must not be negative, got %s", c.BatchWindow)
	}
	if c.BatchMaxSize < 2 {
		return fmt.Errorf("BATCH_MAX_SIZE must be at least 2, got %d", c.BatchMaxSize)
	}
	if c.AuthRefreshBuffer < 0 {
		return fmt.Errorf("AUTH_REFRESH_BUFFER must not be negative, got %s", c.AuthRefreshBuffer)
	}
	return nil
}

// CredentialsDBPath is where the session tokens persist.
func (c *Config) CredentialsDBPath() string {
	return filepath.Join(c.DataDir, "client_data.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	if items := utils.SplitList(os.Getenv(key)); len(items) > 0 {
		return items
	}
	return defaultValue
}
