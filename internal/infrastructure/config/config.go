// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Import        ImportConfig        `yaml:"import"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ImportConfig holds import pipeline tuning
type ImportConfig struct {
	BatchSize int `yaml:"batch_size"`

	// Fuzzy-match thresholds for payee/category entity matching
	MatchHighThreshold   float64 `yaml:"match_high_threshold"`
	MatchMediumThreshold float64 `yaml:"match_medium_threshold"`

	// Validation limits
	MaxAmount                 float64 `yaml:"max_amount"`
	MaxFutureMonths           int     `yaml:"max_future_months"`
	DisallowFutureDates       bool    `yaml:"disallow_future_dates"`
	TransferDateToleranceDays int     `yaml:"transfer_date_tolerance_days"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${BUDGET_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("BUDGET_DB_PATH", "budget_import.db"),
		},
		Server: ServerConfig{
			Port: getEnvInt("BUDGET_API_PORT", 8080),
		},
		Import: ImportConfig{
			BatchSize:                 getEnvInt("IMPORT_BATCH_SIZE", 25),
			MatchHighThreshold:        getEnvFloat("IMPORT_MATCH_HIGH_THRESHOLD", 0.85),
			MatchMediumThreshold:      getEnvFloat("IMPORT_MATCH_MEDIUM_THRESHOLD", 0.65),
			MaxAmount:                 getEnvFloat("IMPORT_MAX_AMOUNT", 1000000),
			MaxFutureMonths:           getEnvInt("IMPORT_MAX_FUTURE_MONTHS", 3),
			DisallowFutureDates:       getEnv("IMPORT_DISALLOW_FUTURE_DATES", "") == "true",
			TransferDateToleranceDays: getEnvInt("IMPORT_TRANSFER_DATE_TOLERANCE_DAYS", 3),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in zero values left by a sparse YAML file
func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "budget_import.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Import.BatchSize == 0 {
		c.Import.BatchSize = 25
	}
	if c.Import.MatchHighThreshold == 0 {
		c.Import.MatchHighThreshold = 0.85
	}
	if c.Import.MatchMediumThreshold == 0 {
		c.Import.MatchMediumThreshold = 0.65
	}
	if c.Import.MaxAmount == 0 {
		c.Import.MaxAmount = 1000000
	}
	if c.Import.MaxFutureMonths == 0 {
		c.Import.MaxFutureMonths = 3
	}
	if c.Import.TransferDateToleranceDays == 0 {
		c.Import.TransferDateToleranceDays = 3
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvFloat retrieves a float environment variable with a fallback default
func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(val, 64); err == nil {
			return result
		}
	}
	return fallback
}
