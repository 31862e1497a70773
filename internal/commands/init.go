package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// starterConfig is the annotated cleanab.yaml written by `cleanab init`.
const starterConfig = `cleanab:
  # Identifier your bank hands out for FinTS product registration.
  fints_product_id: ""
  session_cache_size: 8
  minimum_holdings_delta: 1
  cache_path: cleanab-cache.db

timespan:
  earliest_date: 2000-01-01
  maximum_days: 30

accounts:
  - iban: DE02120300000000202051
    per_app_id: 00000000-0000-0000-0000-000000000000
    friendly_name: Checking
    account_type: checking
    fints_blz: "12030000"
    fints_username: username
    fints_password: secret
    fints_endpoint: https://banking-dkb.s-fints-pt-dkb.de/fints30
    default_cleared: false
    default_approved: false

# Rules stripping boilerplate before the main pass.
pre_replacements:
  purpose:
    - "SEPA-BASISLASTSCHRIFT "

# Main cleanup pass. A list entry that is itself a list is a fallback
# group: only its first matching rule fires.
replacements:
  purpose: []
  applicant_name: []

finalizer:
  purpose:
    capitalize: false
    strip: true
  applicant_name:
    capitalize: true
    strip: true

apps:
  actual:
    actual_api_url: http://localhost:5007
    actual_api_key: secret
    actual_sync_id: 00000000-0000-0000-0000-000000000000
    actual_account_id: 00000000-0000-0000-0000-000000000000
`

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter cleanab.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(absDir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}

func runInit(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	path := filepath.Join(dir, "cleanab.yaml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	// The config holds credentials; keep it private.
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	gitignore := "cleanab.yaml\ncleanab-cache.db\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", path)
	return nil
}
