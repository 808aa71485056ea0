// Package cmd defines the command-line interface for coronacaster.
package cmd

import (
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(priorsCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(experimentCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("source", contract.DefaultSource, "Case data source: HTTP(S) URL or local CSV path")
	rootCmd.PersistentFlags().String("cache-ttl", contract.DefaultCacheTTL.String(), "How long a downloaded dataset stays fresh")
	rootCmd.PersistentFlags().StringP("country", "c", schema.WorldCountry, "Country to forecast ('World' or '*' aggregates all)")
	rootCmd.PersistentFlags().StringP("model", "m", contract.DefaultModel, "Model key: polyN or exp or logis")
	rootCmd.PersistentFlags().Int("samples", contract.DefaultSamples, "Posterior draws kept per chain")
	rootCmd.PersistentFlags().Int("tune", contract.DefaultTune, "Warm-up draws discarded per chain")
	rootCmd.PersistentFlags().Int("chains", contract.DefaultChains, "Number of independent MCMC chains")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int64("seed", contract.DefaultSeed, "Random seed for reproducible sampling")
	rootCmd.PersistentFlags().Float64("limit", 0, "Drop observations below this cumulative case count")
	rootCmd.PersistentFlags().String("start", "", "First day of the fit window (YYYY-MM-DD)")
	rootCmd.PersistentFlags().String("end", "", "Last day of the fit window (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringP("target", "t", "", "Forecast date (YYYY-MM-DD) or days ahead of the window end (+N)")
	rootCmd.PersistentFlags().StringArray("prior", nil, "Prior override as name=mean,scale (repeatable)")
	rootCmd.PersistentFlags().Bool("combined", false, "Use a single combined sensitivity band")
	rootCmd.PersistentFlags().String("scale", string(schema.LinScale), "Plot scale: lin or log")
	rootCmd.PersistentFlags().String("plot-file", "", "Optional path to write plot data (.json or .csv or .parquet)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("run-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("run-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("emoji", "no", "Enable emojis in output headers (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of forecastCmd to Viper
	forecastCmd.Flags().Bool("dry-run", false, "Resolve priors and data window without sampling")
	if err := viper.BindPFlags(forecastCmd.Flags()); err != nil {
		contract.LogFatal("Error binding forecast flags", err)
	}

	// Bind all flags of experimentCmd to Viper
	experimentCmd.Flags().String("countries", "", "Comma-separated countries to forecast ('*' means every country)")
	experimentCmd.Flags().String("models", "", "Comma-separated model keys to fit for each country")
	if err := viper.BindPFlags(experimentCmd.Flags()); err != nil {
		contract.LogFatal("Error binding experiment flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
