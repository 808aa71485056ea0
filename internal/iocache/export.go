package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/parquet"
)

// ExportPaths returns the two Parquet files written for outputPrefix.
func ExportPaths(outputPrefix string) (runsFile, resultsFile string) {
	return outputPrefix + ".forecast_runs.parquet", outputPrefix + ".forecast_results.parquet"
}

// ExportRuns writes every tracked run and forecast result of store to Parquet
// files next to outputPrefix and reports progress on w.
func ExportRuns(store contract.RunStore, outputPrefix string, w io.Writer) error {
	if outputPrefix == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("run tracking is not enabled")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total runs: %d\n", status.TotalRuns)
	_, _ = fmt.Fprintf(w, "Total forecast records: %d\n", status.TableSizes[forecastResultsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve forecast runs: %w", err)
	}
	results, err := store.GetAllForecastResults()
	if err != nil {
		return fmt.Errorf("failed to retrieve forecast results: %w", err)
	}

	runsFile, resultsFile := ExportPaths(outputPrefix)
	if err := parquet.WriteForecastRunsParquet(parquet.ConvertForecastRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write forecast runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	if err := parquet.WriteForecastResultsParquet(parquet.ConvertForecastResultRecords(results), resultsFile); err != nil {
		return fmt.Errorf("failed to write forecast results: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d forecast records to: %s\n", len(results), resultsFile)
	return nil
}
