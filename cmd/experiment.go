package cmd

import (
	"github.com/huangsam/coronacaster/core"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/spf13/cobra"
)

// experimentCmd runs every model against every selected country.
var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Forecast many countries with many models in one run",
	Long: `Run the forecast pipeline for each (country, model) pair and print one row per
pair. A failing pair is reported with the stage where it failed and does not
stop the run.

When run tracking is enabled (--run-backend), each run and its forecasts are
stored for later export.

Examples:
  coronacaster experiment --countries Italy,Spain --models poly2,exp,logis --target +7
  coronacaster experiment --countries '*' --models logis --run-backend sqlite`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteExperiment(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run experiment", err)
		}
	},
}
