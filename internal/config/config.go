// Package config loads runtime configuration for the telmi assistant
// from environment variables and command-line flag overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the telmi assistant
type Config struct {
	// Anthropic configuration
	AnthropicAPIKey string
	Model           string
	MaxTokens       int

	// ClickHouse configuration
	ClickhouseAddr     string
	ClickhouseDatabase string
	ClickhouseUsername string
	ClickhousePassword string

	// Pipeline configuration
	ExportDir    string
	MaxRows      int
	QueryTimeout time.Duration

	// Server configuration
	MetricsAddr string

	// Feature flags
	Verbose     bool
	EnablePprof bool
}

const (
	defaultModel        = "claude-sonnet-4-20250514"
	defaultMaxTokens    = 4096
	defaultExportDir    = "exports"
	defaultMaxRows      = 1000
	defaultQueryTimeout = 2 * time.Minute
)

// LoadFromEnv loads configuration from environment variables and flags
func LoadFromEnv(metricsAddrFlag string, verbose, enablePprof bool) (*Config, error) {
	cfg := &Config{
		MetricsAddr: metricsAddrFlag,
		Verbose:     verbose,
		EnablePprof: enablePprof,
	}

	// Load Anthropic API key
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}

	cfg.Model = os.Getenv("TELMI_MODEL")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	cfg.MaxTokens = defaultMaxTokens
	if v := os.Getenv("TELMI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("TELMI_MAX_TOKENS must be a positive integer, got: %s", v)
		}
		cfg.MaxTokens = n
	}

	// Load ClickHouse configuration
	cfg.ClickhouseAddr = os.Getenv("CLICKHOUSE_ADDR")
	if cfg.ClickhouseAddr == "" {
		return nil, fmt.Errorf("CLICKHOUSE_ADDR is required (use CLICKHOUSE_ADDR env var)")
	}
	cfg.ClickhouseDatabase = os.Getenv("CLICKHOUSE_DATABASE")
	if cfg.ClickhouseDatabase == "" {
		return nil, fmt.Errorf("CLICKHOUSE_DATABASE is required (use CLICKHOUSE_DATABASE env var)")
	}
	cfg.ClickhouseUsername = os.Getenv("CLICKHOUSE_USERNAME")
	if cfg.ClickhouseUsername == "" {
		return nil, fmt.Errorf("CLICKHOUSE_USERNAME is required (use CLICKHOUSE_USERNAME env var)")
	}
	cfg.ClickhousePassword = os.Getenv("CLICKHOUSE_PASSWORD")

	// Load pipeline configuration
	cfg.ExportDir = os.Getenv("TELMI_EXPORT_DIR")
	if cfg.ExportDir == "" {
		cfg.ExportDir = defaultExportDir
	}

	cfg.MaxRows = defaultMaxRows
	if v := os.Getenv("TELMI_MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("TELMI_MAX_ROWS must be a positive integer, got: %s", v)
		}
		cfg.MaxRows = n
	}

	cfg.QueryTimeout = defaultQueryTimeout
	if v := os.Getenv("TELMI_QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("TELMI_QUERY_TIMEOUT must be a positive duration, got: %s", v)
		}
		cfg.QueryTimeout = d
	}

	return cfg, nil
}
