package iocache

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/coronacaster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	store, err := NewRunStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*RunStoreImpl)
}

func okRecord(runID int64, country, model string, at time.Time) schema.ForecastResultRecord {
	table := schema.NewResultTable()
	table.Set(schema.KeyCorr, 0.99)
	table.Set(schema.KeyPrediction, 1234.5)
	table.Set(schema.KeyPredictionCILow, 1200)
	table.Set(schema.KeyPredictionCIHigh, 1300)
	table.Set("a1_mean", 20)
	table.Set("a1_std", 0.5)
	target := at.AddDate(0, 0, 10)
	return schema.NewForecastResultRecord(runID, schema.ExperimentRow{
		Country: country,
		Model:   model,
		Target:  &target,
		Table:   table,
	}, at)
}

func TestRunStore_NoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	id, err := store.BeginRun(time.Now(), map[string]any{"models": []string{"poly1"}})
	assert.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, store.EndRun(1, time.Now(), 1, 0))
	assert.NoError(t, store.RecordForecast(schema.ForecastResultRecord{}))

	runs, err := store.GetAllRuns()
	assert.NoError(t, err)
	assert.Empty(t, runs)
	status, err := store.GetStatus()
	assert.NoError(t, err)
	assert.False(t, status.Connected)
	assert.NoError(t, store.Close())
}

func TestRunStore_Lifecycle(t *testing.T) {
	store := newSQLiteRunStore(t)

	start := time.Date(2020, 4, 5, 10, 0, 0, 0, time.UTC)
	runID, err := store.BeginRun(start, map[string]any{"countries": []string{"Testland"}, "samples": 300})
	require.NoError(t, err)
	assert.Positive(t, runID)

	require.NoError(t, store.RecordForecast(okRecord(runID, "Testland", "poly1", start.Add(time.Second))))

	failed := schema.NewForecastResultRecord(runID, schema.ExperimentRow{
		Country: "Testland",
		Model:   "poly9",
		Stage:   schema.DataStage,
		Error:   "not enough points",
	}, start.Add(2*time.Second))
	require.NoError(t, store.RecordForecast(failed))

	require.NoError(t, store.EndRun(runID, start.Add(1500*time.Millisecond), 2, 1))

	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, runID, run.RunID)
	assert.True(t, start.Equal(run.StartTime))
	require.NotNil(t, run.EndTime)
	require.NotNil(t, run.RunDurationMs)
	assert.Equal(t, int32(1500), *run.RunDurationMs)
	assert.Equal(t, int32(2), run.TotalForecasts)
	assert.Equal(t, int32(1), run.FailedForecasts)
	require.NotNil(t, run.ConfigParams)
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(*run.ConfigParams), &params))
	assert.Equal(t, float64(300), params["samples"])

	results, err := store.GetAllForecastResults()
	require.NoError(t, err)
	require.Len(t, results, 2)

	ok := results[0]
	assert.Equal(t, "poly1", ok.Model)
	assert.Equal(t, schema.ForecastOK, ok.Status)
	require.NotNil(t, ok.Prediction)
	assert.InDelta(t, 1234.5, *ok.Prediction, 1e-9)
	require.NotNil(t, ok.TargetDate)
	assert.True(t, start.AddDate(0, 0, 10).Add(time.Second).Equal(*ok.TargetDate))
	assert.Nil(t, ok.TargetFit)
	assert.Nil(t, ok.ErrorStage)
	require.NotNil(t, ok.Parameters)
	assert.JSONEq(t, `{"a1_mean":20,"a1_std":0.5}`, *ok.Parameters)

	bad := results[1]
	assert.Equal(t, "poly9", bad.Model)
	assert.Equal(t, schema.ForecastFailed, bad.Status)
	require.NotNil(t, bad.ErrorStage)
	assert.Equal(t, string(schema.DataStage), *bad.ErrorStage)
	assert.Nil(t, bad.Prediction)
	assert.Nil(t, bad.TargetDate)
}

func TestRunStore_DuplicateForecastRejected(t *testing.T) {
	store := newSQLiteRunStore(t)
	now := time.Now()
	runID, err := store.BeginRun(now, nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordForecast(okRecord(runID, "Testland", "exp", now)))
	err = store.RecordForecast(okRecord(runID, "Testland", "exp", now))
	assert.ErrorContains(t, err, "Testland/exp")
}

func TestRunStore_EndUnknownRun(t *testing.T) {
	store := newSQLiteRunStore(t)
	assert.Error(t, store.EndRun(99, time.Now(), 0, 0))
}

func TestRunStore_GetStatus(t *testing.T) {
	store := newSQLiteRunStore(t)

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Zero(t, status.TotalRuns)
	assert.Equal(t, int64(0), status.TableSizes[forecastRunsTable])

	first := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	var last int64
	for i := range 3 {
		at := first.Add(time.Duration(i) * time.Hour)
		id, err := store.BeginRun(at, nil)
		require.NoError(t, err)
		require.NoError(t, store.RecordForecast(okRecord(id, "Testland", "poly1", at)))
		require.NoError(t, store.EndRun(id, at.Add(time.Minute), 1, 0))
		last = id
	}

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 3, status.TotalRuns)
	assert.Equal(t, last, status.LastRunID)
	assert.True(t, first.Equal(status.OldestRunTime))
	assert.True(t, first.Add(2*time.Hour).Equal(status.LastRunTime))
	assert.Equal(t, 3, status.TotalForecasts)
	assert.Equal(t, int64(3), status.TableSizes[forecastRunsTable])
	assert.Equal(t, int64(3), status.TableSizes[forecastResultsTable])
}

func TestRunStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	id, err := store.BeginRun(time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.GetAllRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
	assert.Nil(t, runs[0].EndTime)
}

func TestClearRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	require.NoError(t, ClearRuns(schema.SQLiteBackend, dbPath, ""))
	assert.NoFileExists(t, dbPath)
	assert.NoError(t, ClearRuns(schema.NoneBackend, "", ""))
	assert.Error(t, ClearRuns("unsupported", "", ""))
}
