// Package config provides YAML-based server configuration.
package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database path. ":memory:" is accepted.
	DBPath string `yaml:"db_path"`

	// BillingCron is a cron-style schedule for the cycle-billing scan,
	// e.g. "0 * * * *" for hourly.
	BillingCron string `yaml:"billing_cron"`

	// CORSOrigins lists the allowed browser origins.
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Listen:      ":8080",
		DBPath:      "studio.db",
		BillingCron: "0 * * * *",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads the YAML config at path. A missing file yields the defaults
// rather than an error so the server can run with zero setup.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Listen == "" {
		cfg.Listen = Default().Listen
	}
	if cfg.DBPath == "" {
		cfg.DBPath = Default().DBPath
	}
	if cfg.BillingCron == "" {
		cfg.BillingCron = Default().BillingCron
	}
	return cfg, nil
}

// Save writes the config with owner-only permissions.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
