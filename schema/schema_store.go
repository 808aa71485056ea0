package schema

import "time"

// Forecast outcome labels stored with each result record.
const (
	ForecastOK     = "ok"
	ForecastFailed = "failed"
)

// ForecastRunRecord represents a row from the coronacaster_forecast_runs table.
type ForecastRunRecord struct {
	RunID           int64
	StartTime       time.Time
	EndTime         *time.Time
	RunDurationMs   *int32
	TotalForecasts  int32
	FailedForecasts int32
	ConfigParams    *string
}

// ForecastResultRecord represents a row from the coronacaster_forecast_results table.
// Nullable columns stay nil when the forecast did not produce that value.
type ForecastResultRecord struct {
	RunID            int64
	Country          string
	Model            string
	RecordedAt       time.Time
	TargetDate       *time.Time
	Prediction       *float64
	PredictionCILow  *float64
	PredictionCIHigh *float64
	TargetFit        *float64
	Corr             *float64
	MeanDiff         *float64
	NormOfDiff       *float64
	MaxPosDiff       *float64
	MaxNegDiff       *float64
	Status           string
	ErrorStage       *string
	ErrorMessage     *string
	Parameters       *string // JSON object of <param>_mean / <param>_std rows
}
