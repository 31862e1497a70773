package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanab-dev/cleanab/internal/model"
)

const minimalConfig = `
cleanab:
  fints_product_id: "PROD-1"
accounts:
  - iban: DE02120300000000202051
    per_app_id: budget-acct-1
    friendly_name: Checking
    fints_blz: "12030000"
    fints_username: user
    fints_password: secret
    fints_endpoint: https://fints.example.com/fints30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cleanab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMinimalAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Cleanab.Concurrency)
	assert.Equal(t, 8, cfg.Cleanab.SessionCacheSize)
	assert.Equal(t, "cleanab-cache.db", cfg.Cleanab.CachePath)
	assert.Equal(t, 30, cfg.Timespan.MaximumDays)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Timespan.EarliestDate)
	assert.True(t, cfg.Cleanab.HoldingsDelta().Equal(decimal.NewFromInt(1)))

	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, model.TypeChecking, cfg.Accounts[0].Type, "account type defaults to checking")
	assert.Equal(t, "PROD-1", cfg.Accounts[0].ProductID, "product id propagates to credentials")

	require.NotNil(t, cfg.Finalizer)
	fin, ok := cfg.Finalizer[model.FieldApplicantName]
	require.True(t, ok)
	assert.True(t, fin.Capitalize)
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
cleanab:
  concurrency: 4
  minimum_holdings_delta: 0
  session_cache_size: 2
timespan:
  earliest_date: 2024-06-01
  maximum_days: 90
accounts:
  - iban: DE02120300000000202051
    per_app_id: budget-acct-1
    account_type: holding
    fints_blz: "12030000"
    fints_username: user
    fints_password: secret
    fints_endpoint: https://fints.example.com/fints30
replacements:
  purpose:
    - "strip me"
    - - pattern: first
      - pattern: second
finalizer:
  purpose:
    capitalize: false
apps:
  actual:
    actual_api_url: http://localhost:5007
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Cleanab.Concurrency)
	assert.True(t, cfg.Cleanab.HoldingsDelta().IsZero(), "explicit zero must not fall back to the default")
	assert.Equal(t, 2, cfg.Cleanab.SessionCacheSize)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Timespan.EarliestDate)
	assert.Equal(t, model.TypeHolding, cfg.Accounts[0].Type)

	chain := cfg.Replacements[model.FieldPurpose]
	require.Len(t, chain, 2)
	assert.NotNil(t, chain[0].Rule)
	assert.Len(t, chain[1].Fallback, 2)

	assert.False(t, cfg.Finalizer[model.FieldPurpose].Capitalize)
	assert.Contains(t, cfg.Apps, "actual")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no accounts", `timespan: {maximum_days: 10}`, "at least one account"},
		{"bad iban", `
accounts:
  - iban: DE00000000000000000000
    per_app_id: x
    fints_blz: "1"
    fints_username: u
    fints_password: p
    fints_endpoint: https://x
`, "IBAN"},
		{"negative delta", `
cleanab:
  minimum_holdings_delta: -1
accounts:
  - iban: DE02120300000000202051
    per_app_id: x
    fints_blz: "1"
    fints_username: u
    fints_password: p
    fints_endpoint: https://x
`, "minimum_holdings_delta"},
		{"bad rule nesting", `
accounts:
  - iban: DE02120300000000202051
    per_app_id: x
    fints_blz: "1"
    fints_username: u
    fints_password: p
    fints_endpoint: https://x
replacements:
  purpose:
    - - - pattern: deep
`, "groups"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr, "all load failures are ConfigErrors")
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestTimespanEarliest(t *testing.T) {
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	ts := TimespanConfig{
		EarliestDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		MaximumDays:  30,
	}
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), ts.Earliest(today))

	// The configured earliest date caps long lookbacks.
	ts.MaximumDays = 365
	assert.Equal(t, ts.EarliestDate, ts.Earliest(today))
}
