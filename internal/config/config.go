// Package config loads run defaults from the environment. Command-line
// flags take precedence over anything set here.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

// Config holds environment-supplied defaults for an analysis run.
type Config struct {
	// OutputDir is the default directory for CSV exports. Empty disables
	// the export.
	OutputDir string `env:"OUTPUT_DIR"`

	// DBDriver selects the review database driver ("sqlite" or
	// "postgres"). Empty disables the review-database load.
	DBDriver string `env:"DB_DRIVER"`

	// DBDSN is the review database location: a file path for sqlite, a
	// connection string for postgres.
	DBDSN string `env:"DB_DSN"`
}

// Load reads configuration from EVTXTRIAGE_-prefixed environment
// variables.
func Load() (*Config, error) {
	cfg := Config{}
	err := env.Parse(&cfg, env.Options{
		Prefix: "EVTXTRIAGE_",
	})
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
