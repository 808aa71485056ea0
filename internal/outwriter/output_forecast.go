package outwriter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/schema"
)

// forecastJSON is the JSON document of a forecast: the output plus its fit label.
type forecastJSON struct {
	*schema.ForecastOutput
	Label string `json:"label,omitempty"`
}

// PrintForecast outputs a forecast, dispatching based on the output format configured.
// When cfg.PlotFile is set the plot series is written there as well.
func PrintForecast(out *schema.ForecastOutput, cfg *contract.Config, duration time.Duration) error {
	if out == nil {
		return fmt.Errorf("no forecast to print")
	}
	fmtFloat, _ := createFormatters(cfg.Precision)

	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, forecastJSON{ForecastOutput: out, Label: forecastLabel(out)})
		}, "Wrote JSON")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeForecastCSV(w, out, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		err = writeParquetFile(cfg.OutputFile, forecastParquetRows(out), "Wrote Parquet")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeForecastTable(w, out, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
	if err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}

	if cfg.PlotFile != "" {
		if err := PrintPlot(out.Plot, cfg.PlotFile); err != nil {
			return fmt.Errorf("error writing plot file: %w", err)
		}
	}
	return nil
}

// PrintPlot writes the plot series to path. The extension picks the format:
// .json keeps the document shape, .csv and .parquet flatten it to one row per point.
func PrintPlot(plot *schema.PlotSeries, path string) error {
	if plot == nil {
		return fmt.Errorf("forecast has no plot series")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return writeWithFile(path, func(w io.Writer) error {
			return writeJSON(w, plot)
		}, "Wrote plot")
	case ".csv":
		return writeWithFile(path, func(w io.Writer) error {
			return writePlotCSV(w, plot)
		}, "Wrote plot")
	case ".parquet":
		return writeParquetFile(path, plotRows(plot), "Wrote plot")
	default:
		return fmt.Errorf("unsupported plot file extension %q. must be .json, .csv, .parquet", ext)
	}
}

// PrintPriors outputs the resolved priors of a dry run.
func PrintPriors(out *schema.ForecastOutput, cfg *contract.Config, duration time.Duration) error {
	if out == nil {
		return fmt.Errorf("no priors to print")
	}
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, out)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePriorsCSV(w, out, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, priorParquetRows(out), "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePriorsTable(w, out, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

// forecastLabel is the fit quality label of out, empty when there is no table.
func forecastLabel(out *schema.ForecastOutput) string {
	corr, ok := out.Table.Get(schema.KeyCorr)
	if !ok {
		return ""
	}
	return contract.GetPlainLabel(corr)
}
