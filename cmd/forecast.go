package cmd

import (
	"fmt"

	"github.com/huangsam/coronacaster/core"
	"github.com/huangsam/coronacaster/core/model"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/spf13/cobra"
)

// forecastCmd fits one model to one country and predicts the target date.
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast cumulative cases for one country and model",
	Long: fmt.Sprintf(`Fit a Bayesian growth model to cumulative case counts and predict the target date.

The prediction comes with an asymmetric credible interval built from the
per-parameter sensitivity bands (or a single band with --combined).

Models:
  polyN - polynomial of order N (poly0 to poly%d)
  exp   - exponential growth, fitted on a log scale
  logis - logistic curve with a carrying capacity

Examples:
  # Forecast Italy ten days past the last observation
  coronacaster forecast --country Italy --model logis --target +10

  # Fit a fixed window and export plot data
  coronacaster forecast -c Germany -m poly3 --start 2020-03-01 --end 2020-04-15 --plot-file germany.json

  # Inspect resolved priors without sampling
  coronacaster forecast -c Spain -m exp --prior expo=0.2,0.05 --dry-run`, model.MaxPolyOrder),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteForecast(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run forecast", err)
		}
	},
}

// fitCmd reports fit diagnostics without a target prediction.
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit a model and report posterior summary and fit quality",
	Long: `Fit a model to the selected window and print the posterior summary together
with the correlation and residual diagnostics of the fitted curve.

Examples:
  coronacaster fit --country Italy --model poly2
  coronacaster fit -c France -m logis --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteFit(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run fit", err)
		}
	},
}

// priorsCmd prints the priors a model would sample with.
var priorsCmd = &cobra.Command{
	Use:   "priors",
	Short: "Print the resolved priors of a model",
	Long: `Resolve the default priors of a model family, apply --prior and config file
overrides, and print the result. No data is sampled.

Examples:
  coronacaster priors --model poly3
  coronacaster priors -m logis --prior peak=50000,10000 --output csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecutePriors(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot resolve priors", err)
		}
	},
}
