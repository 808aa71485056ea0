package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/iocache"
	"github.com/huangsam/coronacaster/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runBackendFromConfig reads the run tracking backend, treating empty as NoneBackend.
func runBackendFromConfig() (schema.DatabaseBackend, string, error) {
	backendStr := viper.GetString("run-backend")
	connStr := viper.GetString("run-db-connect")

	// Handle empty backend as NoneBackend
	backend := schema.NoneBackend
	if backendStr != "" {
		backend = schema.DatabaseBackend(backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run tracking operations.
func runsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no dataset cache for runs commands)
	if err := iocache.InitCaching(schema.NoneBackend, "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run tracking: %w", err)
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")

	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup loads minimal configuration needed for migrate operations.
// It does NOT open the run store, so migrations can run on a fresh database.
func runsMigrateSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := runBackendFromConfig()
	if err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunDBFilePath()
	}

	cfg.RunBackend = backend
	cfg.RunDBConnect = connStr

	return nil
}

// runsMigrateSetupWrapper wraps runsMigrateSetup to provide PreRunE for migrate command.
func runsMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsMigrateSetup()
}

// runsCmd focused on experiment run tracking.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage tracked experiment runs and exports",
	Long: `Manage the history of experiment runs.

When enabled, every experiment run is stored with:
- Run metadata (start time, duration, configuration)
- One row per (country, model) forecast with prediction, interval and fit quality
- The failing stage and message for forecasts that did not complete

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run tracking statistics
  export  - Export runs and forecasts to Parquet
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  coronacaster runs status --run-backend sqlite
  coronacaster runs export --run-backend sqlite --output-file runs`,
}

// runsClearCmd clears the tracked runs.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all tracked runs and forecasts",
	Long: `Delete all stored experiment runs and their forecast results.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  coronacaster runs export --run-backend sqlite --output-file backup
  coronacaster runs clear --run-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseCaching()
		if err := iocache.ClearRuns(cfg.RunBackend, contract.GetRunDBFilePath(), cfg.RunDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsStatusCmd shows run tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show detailed information about tracked experiment runs.

Displays:
- Backend type and connection status
- Total number of runs and forecasts
- Last and oldest run timestamps
- Row counts per table

Examples:
  coronacaster runs status --run-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports tracked runs to Parquet.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracked runs and forecasts to Parquet files",
	Long: `Export all tracked runs and forecast results to two Parquet files:

  <output-file>.forecast_runs.parquet
  <output-file>.forecast_results.parquet

Examples:
  coronacaster runs export --run-backend sqlite --output-file history
  duckdb -c "SELECT country, model, prediction FROM 'history.forecast_results.parquet'"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExportRuns(iocache.Manager.GetRunStore(), cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsMigrateCmd migrates the run tracking schema.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  coronacaster runs migrate --run-backend sqlite

  # Rollback to initial state
  coronacaster runs migrate --run-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		result, err := iocache.MigrateRuns(cfg.RunBackend, cfg.RunDBConnect, targetVersion)
		if err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
		if !result.Changed {
			fmt.Printf("Run store already at version %d.\n", result.To)
			return
		}
		fmt.Printf("Migrated run store from version %d to %d.\n", result.From, result.To)
	},
}
