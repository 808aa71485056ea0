package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/schema"
)

// Table names for run tracking. They match the embedded migrations.
const (
	forecastRunsTable    = "coronacaster_forecast_runs"
	forecastResultsTable = "coronacaster_forecast_results"
)

// resultColumns is the column order of forecastResultsTable used by inserts and loads.
var resultColumns = []string{
	"run_id", "country", "model", "recorded_at", "target_date",
	"prediction", "prediction_ci_low", "prediction_ci_high", "target_fit",
	"corr", "mean_diff", "norm_of_diff", "max_pos_diff", "max_neg_diff",
	"status", "error_stage", "error_message", "parameters",
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, GetRunDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("run store: %w", err)
	}
	if err := applySchema(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}
	return &RunStoreImpl{db: db, backend: backend}, nil
}

func (rs *RunStoreImpl) table(name string) string {
	return quoteTableName(name, rs.backend)
}

// BeginRun creates a new run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (start_time, config_params) VALUES (%s)`,
		rs.table(forecastRunsTable), placeholders(rs.backend, 1, 2))
	args := []any{formatTime(startTime, rs.backend), string(configJSON)}

	var runID int64
	if rs.backend == schema.PostgreSQLBackend {
		err = rs.db.QueryRow(query+" RETURNING run_id", args...).Scan(&runID)
	} else {
		var res sql.Result
		if res, err = rs.db.Exec(query, args...); err == nil {
			runID, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert forecast run: %w", err)
	}
	return runID, nil
}

// EndRun stamps the run with its end time, duration and forecast counts.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, totalForecasts, failedForecasts int) error {
	if rs.db == nil {
		return nil
	}

	start := nullTime{backend: rs.backend}
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, rs.table(forecastRunsTable), placeholders(rs.backend, 1, 1))
	if err := rs.db.QueryRow(query, runID).Scan(&start); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	durationMs := endTime.Sub(start.Time).Milliseconds()

	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_forecasts = %s, failed_forecasts = %s WHERE run_id = %s`,
		rs.table(forecastRunsTable),
		placeholders(rs.backend, 1, 1), placeholders(rs.backend, 2, 1), placeholders(rs.backend, 3, 1),
		placeholders(rs.backend, 4, 1), placeholders(rs.backend, 5, 1))
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, totalForecasts, failedForecasts, runID); err != nil {
		return fmt.Errorf("failed to update forecast run: %w", err)
	}
	return nil
}

// RecordForecast stores the summary of one (country, model) forecast.
func (rs *RunStoreImpl) RecordForecast(record schema.ForecastResultRecord) error {
	if rs.db == nil {
		return nil
	}

	var target any
	if record.TargetDate != nil {
		target = formatTime(*record.TargetDate, rs.backend)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		rs.table(forecastResultsTable), strings.Join(resultColumns, ", "), placeholders(rs.backend, 1, len(resultColumns)))
	_, err := rs.db.Exec(query,
		record.RunID, record.Country, record.Model, formatTime(record.RecordedAt, rs.backend), target,
		record.Prediction, record.PredictionCILow, record.PredictionCIHigh, record.TargetFit,
		record.Corr, record.MeanDiff, record.NormOfDiff, record.MaxPosDiff, record.MaxNegDiff,
		record.Status, record.ErrorStage, record.ErrorMessage, record.Parameters,
	)
	if err != nil {
		return fmt.Errorf("failed to insert forecast result for %s/%s: %w", record.Country, record.Model, err)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	var firstID, lastID sql.NullInt64
	summary := fmt.Sprintf("SELECT COUNT(*), MIN(run_id), MAX(run_id), COALESCE(SUM(total_forecasts), 0) FROM %s", rs.table(forecastRunsTable))
	if err := rs.db.QueryRow(summary).Scan(&status.TotalRuns, &firstID, &lastID, &status.TotalForecasts); err != nil {
		return status, fmt.Errorf("failed to get run summary: %w", err)
	}

	if status.TotalRuns > 0 {
		status.LastRunID = lastID.Int64
		startOf := fmt.Sprintf("SELECT start_time FROM %s WHERE run_id = %s", rs.table(forecastRunsTable), placeholders(rs.backend, 1, 1))
		for _, probe := range []struct {
			id  int64
			dst *time.Time
		}{{firstID.Int64, &status.OldestRunTime}, {lastID.Int64, &status.LastRunTime}} {
			ts := nullTime{backend: rs.backend}
			if err := rs.db.QueryRow(startOf, probe.id).Scan(&ts); err != nil {
				return status, fmt.Errorf("failed to get start time of run %d: %w", probe.id, err)
			}
			*probe.dst = ts.Time
		}
	}

	for _, table := range []string{forecastRunsTable, forecastResultsTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", rs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all forecast runs ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.ForecastRunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, total_forecasts, failed_forecasts, config_params
		FROM %s ORDER BY run_id`, rs.table(forecastRunsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ForecastRunRecord
	for rows.Next() {
		var record schema.ForecastRunRecord
		start := nullTime{backend: rs.backend}
		end := nullTime{backend: rs.backend}
		if err := rows.Scan(&record.RunID, &start, &end, &record.RunDurationMs,
			&record.TotalForecasts, &record.FailedForecasts, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan forecast run: %w", err)
		}
		record.StartTime = start.Time
		record.EndTime = end.Ptr()
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecast runs: %w", err)
	}
	return results, nil
}

// GetAllForecastResults retrieves every recorded forecast ordered by run, country and model.
func (rs *RunStoreImpl) GetAllForecastResults() ([]schema.ForecastResultRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY run_id, country, model`,
		strings.Join(resultColumns, ", "), rs.table(forecastResultsTable))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ForecastResultRecord
	for rows.Next() {
		var r schema.ForecastResultRecord
		recorded := nullTime{backend: rs.backend}
		target := nullTime{backend: rs.backend}
		if err := rows.Scan(&r.RunID, &r.Country, &r.Model, &recorded, &target,
			&r.Prediction, &r.PredictionCILow, &r.PredictionCIHigh, &r.TargetFit,
			&r.Corr, &r.MeanDiff, &r.NormOfDiff, &r.MaxPosDiff, &r.MaxNegDiff,
			&r.Status, &r.ErrorStage, &r.ErrorMessage, &r.Parameters); err != nil {
			return nil, fmt.Errorf("failed to scan forecast result: %w", err)
		}
		r.RecordedAt = recorded.Time
		r.TargetDate = target.Ptr()
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecast results: %w", err)
	}
	return results, nil
}
