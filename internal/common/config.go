// Package common provides shared utilities for Tally
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tally
type Config struct {
	Environment  string            `toml:"environment"`
	BaseCurrency string            `toml:"base_currency"` // Currency reports are normalized into when the store has none
	Server       ServerConfig      `toml:"server"`
	Storage      StorageConfig     `toml:"storage"`
	Aggregation  AggregationConfig `toml:"aggregation"`
	Logging      LoggingConfig     `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the ledger store location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// AggregationConfig tunes the report pipeline.
type AggregationConfig struct {
	Workers                       int    `toml:"workers"`        // Max concurrent per-date/per-category computations
	LookupTimeout                 string `toml:"lookup_timeout"` // Bound on a single exchange-rate lookup
	TreatTransfersAsIncomeExpense bool   `toml:"treat_transfers_as_income_expense"`
}

// GetLookupTimeout parses and returns the lookup timeout duration
func (c *AggregationConfig) GetLookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.LookupTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetWorkers returns the worker limit, defaulting to 8.
func (c *AggregationConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 8
	}
	return c.Workers
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "USD",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/ledger",
		},
		Aggregation: AggregationConfig{
			Workers:       8,
			LookupTimeout: "2s",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/tally.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first; variables already
// set in the environment take precedence over it.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	applyEnvOverrides(config)

	config.BaseCurrency = normalizeCurrency(config.BaseCurrency, "USD")

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TALLY_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TALLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("TALLY_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}

	if bc := os.Getenv("TALLY_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = bc
	}

	if w := os.Getenv("TALLY_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			config.Aggregation.Workers = n
		}
	}

	if t := os.Getenv("TALLY_LOOKUP_TIMEOUT"); t != "" {
		config.Aggregation.LookupTimeout = t
	}

	if v := os.Getenv("TALLY_TREAT_TRANSFERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Aggregation.TreatTransfersAsIncomeExpense = b
		}
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// normalizeCurrency upper-cases a currency code, using fallback when it is
// not a three-letter code.
func normalizeCurrency(code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return fallback
	}
	return code
}
