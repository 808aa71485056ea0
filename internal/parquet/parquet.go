// Package parquet provides data structures and functions for reading case
// data from and exporting forecast data to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/coronacaster/schema"
	"github.com/parquet-go/parquet-go"
)

// ForecastRun represents a single experiment run with metadata.
// This struct maps to the coronacaster_forecast_runs database table.
type ForecastRun struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalForecasts is the number of (country, model) forecasts attempted
	TotalForecasts int32 `parquet:"total_forecasts,snappy"`

	// FailedForecasts is the number of forecasts that ended in an error
	FailedForecasts int32 `parquet:"failed_forecasts,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ForecastResult is the flattened summary of one (country, model) forecast.
// This struct maps to the coronacaster_forecast_results database table.
type ForecastResult struct {
	RunID            int64      `parquet:"run_id,snappy"`
	Country          string     `parquet:"country,snappy"`
	Model            string     `parquet:"model,snappy"`
	RecordedAt       time.Time  `parquet:"recorded_at,snappy"`
	TargetDate       *time.Time `parquet:"target_date,optional,snappy"`
	Prediction       *float64   `parquet:"prediction,optional,snappy"`
	PredictionCILow  *float64   `parquet:"prediction_ci_low,optional,snappy"`
	PredictionCIHigh *float64   `parquet:"prediction_ci_high,optional,snappy"`
	TargetFit        *float64   `parquet:"target_fit,optional,snappy"`
	Corr             *float64   `parquet:"corr,optional,snappy"`
	MeanDiff         *float64   `parquet:"mean_diff,optional,snappy"`
	NormOfDiff       *float64   `parquet:"norm_of_diff,optional,snappy"`
	MaxPosDiff       *float64   `parquet:"max_pos_diff,optional,snappy"`
	MaxNegDiff       *float64   `parquet:"max_neg_diff,optional,snappy"`
	Status           string     `parquet:"status,snappy"`
	ErrorStage       *string    `parquet:"error_stage,optional,snappy"`
	ErrorMessage     *string    `parquet:"error_message,optional,snappy"`
	Parameters       *string    `parquet:"parameters,optional,snappy"` // JSON of <param>_mean/_std
}

// CaseRow is one daily record of the case distribution table.
type CaseRow struct {
	Date    time.Time `parquet:"date,snappy"`
	Country string    `parquet:"country,dict,snappy"`
	Cases   float64   `parquet:"cases,snappy"`
	Deaths  float64   `parquet:"deaths,snappy"`
}

// ResultRow is one key/value line of a forecast result table.
type ResultRow struct {
	Country string   `parquet:"country,dict,snappy"`
	Model   string   `parquet:"model,dict,snappy"`
	Key     string   `parquet:"key,dict,snappy"`
	Value   *float64 `parquet:"value,optional,snappy"` // Null when not finite
}

// PriorRow is one resolved Normal prior of a model.
type PriorRow struct {
	Model string  `parquet:"model,dict,snappy"`
	Name  string  `parquet:"name,dict,snappy"`
	Mean  float64 `parquet:"mean,snappy"`
	Scale float64 `parquet:"scale,snappy"`
}

// ExperimentRow is the outcome of one (country, model) forecast in a batch.
type ExperimentRow struct {
	Country    string     `parquet:"country,dict,snappy"`
	Model      string     `parquet:"model,dict,snappy"`
	Target     *time.Time `parquet:"target,optional,snappy"`
	Prediction *float64   `parquet:"prediction,optional,snappy"`
	CILow      *float64   `parquet:"prediction_ci_low,optional,snappy"`
	CIHigh     *float64   `parquet:"prediction_ci_high,optional,snappy"`
	Corr       *float64   `parquet:"corr,optional,snappy"`
	Stage      *string    `parquet:"error_stage,optional,snappy"`
	Error      *string    `parquet:"error,optional,snappy"`
}

// PlotRow is one point of a named plot series in long format.
type PlotRow struct {
	Series string    `parquet:"series,dict,snappy"`
	Date   time.Time `parquet:"date,snappy"`
	Value  *float64  `parquet:"value,optional,snappy"`
}

// SeriesRow is one date of a country's cumulative history.
type SeriesRow struct {
	Country          string    `parquet:"country,dict,snappy"`
	Date             time.Time `parquet:"date,snappy"`
	CumulativeCases  float64   `parquet:"cumulative_cases,snappy"`
	CumulativeDeaths float64   `parquet:"cumulative_deaths,snappy"`
}

// WriteRows writes rows to a Parquet file whose schema is inferred from T.
func WriteRows[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := WriteRowsTo(file, data); err != nil {
		return err
	}
	return file.Close()
}

// WriteRowsTo writes rows to w as a complete Parquet file.
func WriteRowsTo[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteForecastRunsParquet writes a slice of ForecastRun structs to a Parquet file.
func WriteForecastRunsParquet(data []ForecastRun, outputPath string) error {
	return WriteRows(data, outputPath)
}

// WriteForecastResultsParquet writes a slice of ForecastResult structs to a Parquet file.
func WriteForecastResultsParquet(data []ForecastResult, outputPath string) error {
	return WriteRows(data, outputPath)
}

// ReadCaseRows reads every CaseRow from a Parquet file held in r.
func ReadCaseRows(r io.ReaderAt, size int64) ([]CaseRow, error) {
	rows, err := parquet.Read[CaseRow](r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read case rows: %w", err)
	}
	return rows, nil
}

// ConvertForecastRunRecords maps stored run records onto their Parquet rows.
func ConvertForecastRunRecords(records []schema.ForecastRunRecord) []ForecastRun {
	out := make([]ForecastRun, len(records))
	for i, r := range records {
		out[i] = ForecastRun{
			RunID:           r.RunID,
			StartTime:       r.StartTime,
			EndTime:         r.EndTime,
			RunDurationMs:   r.RunDurationMs,
			TotalForecasts:  r.TotalForecasts,
			FailedForecasts: r.FailedForecasts,
			ConfigParams:    r.ConfigParams,
		}
	}
	return out
}

// ConvertForecastResultRecords maps stored forecast results onto their Parquet rows.
func ConvertForecastResultRecords(records []schema.ForecastResultRecord) []ForecastResult {
	out := make([]ForecastResult, len(records))
	for i, r := range records {
		out[i] = ForecastResult(r)
	}
	return out
}
