// Package config loads and validates the service configuration.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tradelab-io/statsync/pkg/errors"
)

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required"`
}

// StoreConfig configures the participant record store.
type StoreConfig struct {
	// Path is the DuckDB database file, or ":memory:".
	Path string `yaml:"path" validate:"required"`
}

// LedgerConfig configures the legacy flat-file ledger.
type LedgerConfig struct {
	// Enabled toggles ledger mirroring and the ledger as a target source.
	Enabled bool `yaml:"enabled"`
	// Path is the ledger CSV file.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// SourceConfig configures export fetching.
type SourceConfig struct {
	// TimeoutSeconds bounds each fetch. Fetches are never retried.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=1"`
}

// ScheduleConfig configures the daemon mode.
type ScheduleConfig struct {
	// Cron is the batch-sync schedule in cron syntax.
	Cron string `yaml:"cron"`
}

// Seed is one built-in sync target, used when a participant exists in
// neither the store nor the ledger.
type Seed struct {
	Token  string `yaml:"token" validate:"required"`
	Name   string `yaml:"name"`
	CsvURL string `yaml:"csv_url" validate:"required,url"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Source   SourceConfig   `yaml:"source"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Seeds    []Seed         `yaml:"seeds" validate:"dive"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Path: "data/participants.db"},
		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "data/ledger.csv",
		},
		Source:   SourceConfig{TimeoutSeconds: 30},
		Schedule: ScheduleConfig{Cron: "0 */6 * * *"},
		Seeds:    nil,
	}
}

// Load reads the yaml file at path over the defaults and validates the
// result. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate validates the configuration struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}
