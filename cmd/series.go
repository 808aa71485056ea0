package cmd

import (
	"github.com/huangsam/coronacaster/core"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/spf13/cobra"
)

// seriesCmd prints the cumulative series of a country.
var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Show the cumulative case series of a country",
	Long: `Load the dataset, aggregate daily reports into cumulative counts and print
the series for the selected country and window.

Examples:
  coronacaster series --country Italy
  coronacaster series -c World --start 2020-03-01 --output csv --output-file world.csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteSeries(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot load series", err)
		}
	},
}

// countriesCmd lists every country in the dataset.
var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the countries available in the dataset",
	Long: `List every country present in the configured data source.

Examples:
  coronacaster countries
  coronacaster countries --source ./cases.csv --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCountries(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot list countries", err)
		}
	},
}
