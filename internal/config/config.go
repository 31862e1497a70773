// Package config loads and validates the cleanab.yaml configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleanab-dev/cleanab/internal/model"
)

// ConfigError marks configuration problems. They are fatal and surface
// before any retrieval begins.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config error: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the top-level cleanab.yaml structure.
type Config struct {
	Cleanab         CleanabConfig          `yaml:"cleanab"`
	Timespan        TimespanConfig         `yaml:"timespan"`
	Accounts        []model.AccountConfig  `yaml:"accounts"`
	Replacements    model.FieldRules       `yaml:"replacements"`
	PreReplacements model.FieldRules       `yaml:"pre_replacements"`
	Finalizer       model.FieldFinalizers  `yaml:"finalizer"`
	Apps            map[string]yaml.Node   `yaml:"apps"`
}

// CleanabConfig holds run-level settings.
type CleanabConfig struct {
	Concurrency          int      `yaml:"concurrency"`
	MinimumHoldingsDelta *float64 `yaml:"minimum_holdings_delta"`
	Debug                bool     `yaml:"debug"`
	FintsProductID       string   `yaml:"fints_product_id"`
	SessionCacheSize     int      `yaml:"session_cache_size"`
	CachePath            string   `yaml:"cache_path"`
}

// HoldingsDelta returns the minimum holdings change that produces an
// adjustment transaction (default 1).
func (c CleanabConfig) HoldingsDelta() decimal.Decimal {
	if c.MinimumHoldingsDelta == nil {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(*c.MinimumHoldingsDelta)
}

// TimespanConfig bounds how far back transactions are fetched.
type TimespanConfig struct {
	EarliestDate time.Time `yaml:"earliest_date"`
	MaximumDays  int       `yaml:"maximum_days"`
}

// Earliest returns the first date to fetch: today minus the maximum
// day span, but never before the configured earliest date.
func (t TimespanConfig) Earliest(today time.Time) time.Time {
	earliest := today.AddDate(0, 0, -t.MaximumDays)
	if earliest.Before(t.EarliestDate) {
		return t.EarliestDate
	}
	return earliest
}

// Load reads and validates a cleanab.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("reading config: %w", err)}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parsing config: %w", err)}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Cleanab.Concurrency == 0 {
		c.Cleanab.Concurrency = 1
	}
	if c.Cleanab.SessionCacheSize == 0 {
		c.Cleanab.SessionCacheSize = 8
	}
	if c.Cleanab.CachePath == "" {
		c.Cleanab.CachePath = "cleanab-cache.db"
	}
	if c.Timespan.EarliestDate.IsZero() {
		c.Timespan.EarliestDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.Timespan.MaximumDays == 0 {
		c.Timespan.MaximumDays = 30
	}
	if c.Finalizer == nil {
		c.Finalizer = model.DefaultFinalizers()
	}
	for i := range c.Accounts {
		if c.Accounts[i].Type == "" {
			c.Accounts[i].Type = model.TypeChecking
		}
		c.Accounts[i].ProductID = c.Cleanab.FintsProductID
	}
}

func (c *Config) validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for _, acct := range c.Accounts {
		if err := acct.Validate(); err != nil {
			return err
		}
	}
	if c.Cleanab.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.Cleanab.MinimumHoldingsDelta != nil && *c.Cleanab.MinimumHoldingsDelta < 0 {
		return fmt.Errorf("minimum_holdings_delta must not be negative")
	}
	if c.Timespan.MaximumDays < 1 {
		return fmt.Errorf("maximum_days must be at least 1")
	}
	return nil
}
