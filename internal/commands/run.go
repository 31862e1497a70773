package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cleanab-dev/cleanab/internal/apps"
	"github.com/cleanab-dev/cleanab/internal/banking"
	"github.com/cleanab-dev/cleanab/internal/cleaner"
	"github.com/cleanab-dev/cleanab/internal/config"
	"github.com/cleanab-dev/cleanab/internal/pipeline"
	"github.com/cleanab-dev/cleanab/internal/session"
	"github.com/cleanab-dev/cleanab/internal/store"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var dryRun bool
	var test bool
	var save bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, clean and import transactions for all configured accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, configPath, dryRun, test, save, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cleanab.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "process everything but do not create transactions")
	cmd.Flags().BoolVar(&test, "test", false, "replay cached raw records (implies --dry-run and --verbose)")
	cmd.Flags().BoolVar(&save, "save", false, "write cleaned records to the local cache")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runPipeline(cmd *cobra.Command, configPath string, dryRun, test, save, verbose bool) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if verbose || test {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Cleanab.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	fieldCleaner, err := cleaner.New(cfg.PreReplacements, cfg.Replacements, cfg.Finalizer)
	if err != nil {
		return &config.ConfigError{Err: err}
	}

	registry := apps.DefaultRegistry()
	var appConns []apps.App
	for name, node := range cfg.Apps {
		app, err := registry.Build(name, &node, logger)
		if err != nil {
			return &config.ConfigError{Err: err}
		}
		logger.Info("Loaded app", "app", app.Name())
		appConns = append(appConns, app)
	}

	cachePath := cfg.Cleanab.CachePath
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(filepath.Dir(configPath), cachePath)
	}
	db, err := store.Open(cachePath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Live retrieval needs the external protocol driver; test runs
	// replay the local cache and work without one.
	var dialer banking.Dialer
	if !test {
		dialer, err = banking.Driver()
		if err != nil {
			return fmt.Errorf("%w (use --test to replay cached records)", err)
		}
	}
	presenter := session.NewTerminal(os.Stdin, os.Stdout, logger)
	sessions, err := session.NewManager(dialer, presenter, cfg.Cleanab.SessionCacheSize, logger)
	if err != nil {
		return err
	}

	runner := pipeline.NewRunner(pipeline.Options{
		Config:   cfg,
		Cleaner:  fieldCleaner,
		Sessions: sessions,
		Store:    db,
		Apps:     appConns,
		Log:      logger,
		DryRun:   dryRun,
		Test:     test,
		Save:     save,
	})

	summary, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Created %d new transactions, saw %d duplicates\n", summary.Created, summary.Duplicates)
	return nil
}
