// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/frontier/internal/database"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the history database (always absolute)
	LogLevel         string
	LogPretty        bool
	Port             int
	DevMode          bool
	RiskFreeRate     float64 // Annualized fallback used when no rate series is stored
	RiskFreeSeries   string  // Rate series read from the history store (percent values)
	DefaultMaxWeight float64 // Per-asset cap applied when a request omits one
	OptimizerWorkers int     // Parallel optimizations in a batch
	HistoryDBProfile string  // "standard", or "cache" when history.db is rebuilt by import
}

// HistoryDBProfileValue returns the validated history database profile.
func (c *Config) HistoryDBProfileValue() database.DatabaseProfile {
	profile, err := database.ParseProfile(c.HistoryDBProfile)
	if err != nil {
		return database.ProfileStandard
	}
	return profile
}

// HistoryDBPath returns the location of the price history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getEnvAsBool("LOG_PRETTY", true),
		Port:             getEnvAsInt("FRONTIER_PORT", 8080),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		RiskFreeRate:     getEnvAsFloat("RISK_FREE_RATE", 0.0),
		RiskFreeSeries:   getEnv("RISK_FREE_SERIES", "GS10"),
		DefaultMaxWeight: getEnvAsFloat("DEFAULT_MAX_WEIGHT", 0.5),
		OptimizerWorkers: getEnvAsInt("OPTIMIZER_WORKERS", 4),
		HistoryDBProfile: getEnv("HISTORY_DB_PROFILE", "standard"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that numeric settings are within range
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("FRONTIER_PORT must be between 1 and 65535, got %d", c.Port)
	}
	if math.IsNaN(c.RiskFreeRate) || math.IsInf(c.RiskFreeRate, 0) {
		return fmt.Errorf("RISK_FREE_RATE must be a finite number")
	}
	if !(c.DefaultMaxWeight > 0 && c.DefaultMaxWeight <= 1) {
		return fmt.Errorf("DEFAULT_MAX_WEIGHT must be in (0, 1], got %v", c.DefaultMaxWeight)
	}
	if c.OptimizerWorkers <= 0 {
		return fmt.Errorf("OPTIMIZER_WORKERS must be positive, got %d", c.OptimizerWorkers)
	}
	if _, err := database.ParseProfile(c.HistoryDBProfile); err != nil {
		return fmt.Errorf("HISTORY_DB_PROFILE: %w", err)
	}
	return nil
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
