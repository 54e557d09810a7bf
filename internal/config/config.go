// Package config loads connection settings from the environment and build
// plans from TOML files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvDatabaseURL = "DBSNAP_DATABASE_URL"
	EnvSchema      = "DBSNAP_SCHEMA"
	EnvOutputDir   = "DBSNAP_OUTPUT_DIR"
	EnvLevel       = "DBSNAP_LEVEL"
)

// Config holds settings read from the environment
type Config struct {
	DatabaseURL string
	Schema      string
	OutputDir   string
	Level       int
}

// Load reads configuration from env files and environment variables. With
// no files it reads .env when present; named files must exist.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		// Load .env file if it exists (silently ignore if missing)
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		DatabaseURL: os.Getenv(EnvDatabaseURL),
		Schema:      os.Getenv(EnvSchema),
		OutputDir:   os.Getenv(EnvOutputDir),
	}

	if raw := os.Getenv(EnvLevel); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil || level < 0 {
			return nil, fmt.Errorf("invalid %s: %q", EnvLevel, raw)
		}
		cfg.Level = level
	}

	return cfg, nil
}
