package parquet

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastRunStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(ForecastRun))
	require.NotNil(t, schema)

	expectedColumns := []string{
		"run_id",
		"start_time",
		"end_time",
		"run_duration_ms",
		"total_forecasts",
		"failed_forecasts",
		"config_params",
	}
	for _, colName := range expectedColumns {
		col, ok := schema.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col, "Column %s should not be nil", colName)
	}
}

func TestForecastResultStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(ForecastResult))
	require.NotNil(t, schema)

	expectedColumns := []string{
		"run_id", "country", "model", "recorded_at", "target_date",
		"prediction", "prediction_ci_low", "prediction_ci_high", "target_fit",
		"corr", "mean_diff", "norm_of_diff", "max_pos_diff", "max_neg_diff",
		"status", "error_stage", "error_message", "parameters",
	}
	for _, colName := range expectedColumns {
		_, ok := schema.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestWriteForecastRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "runs.parquet")

	now := time.Now()
	end := now.Add(90 * time.Second)
	duration := int32(90000)
	params := `{"models":["poly1"]}`
	data := []ForecastRun{
		{RunID: 1, StartTime: now, EndTime: &end, RunDurationMs: &duration, TotalForecasts: 6, FailedForecasts: 1, ConfigParams: &params},
		{RunID: 2, StartTime: now}, // Still running
	}
	require.NoError(t, WriteForecastRunsParquet(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[ForecastRun](file)
	defer func() { _ = reader.Close() }()

	readData := make([]ForecastRun, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, len(data), n)

	assert.Equal(t, int64(1), readData[0].RunID)
	assert.Equal(t, int32(1), readData[0].FailedForecasts)
	require.NotNil(t, readData[0].EndTime)
	assert.WithinDuration(t, end, *readData[0].EndTime, time.Nanosecond)
	require.NotNil(t, readData[0].ConfigParams)
	assert.Equal(t, params, *readData[0].ConfigParams)

	assert.Nil(t, readData[1].EndTime)
	assert.Nil(t, readData[1].RunDurationMs)
	assert.Nil(t, readData[1].ConfigParams)
}

func TestWriteForecastResultsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "results.parquet")

	pred := 1234.5
	corr := 0.998
	stage := "sampling"
	msg := "sampler error: chain 3"
	data := []ForecastResult{
		{RunID: 1, Country: "Italy", Model: "poly2", RecordedAt: time.Now(), Prediction: &pred, Corr: &corr, Status: "ok"},
		{RunID: 1, Country: "Spain", Model: "exp", RecordedAt: time.Now(), Status: "failed", ErrorStage: &stage, ErrorMessage: &msg},
	}
	require.NoError(t, WriteForecastResultsParquet(data, outputPath))

	raw, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	rows, err := parquet.Read[ForecastResult](bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Prediction)
	assert.Equal(t, pred, *rows[0].Prediction)
	assert.Nil(t, rows[0].ErrorStage)
	assert.Nil(t, rows[1].Prediction)
	require.NotNil(t, rows[1].ErrorMessage)
	assert.Equal(t, msg, *rows[1].ErrorMessage)
}

func TestCaseRowsRoundTrip(t *testing.T) {
	day := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	data := []CaseRow{
		{Date: day, Country: "Italy", Cases: 10, Deaths: 1},
		{Date: day.AddDate(0, 0, 1), Country: "Italy", Cases: -2, Deaths: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRowsTo(&buf, data))

	rows, err := ReadCaseRows(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, day.Equal(rows[0].Date))
	assert.Equal(t, "Italy", rows[1].Country)
	assert.Equal(t, -2.0, rows[1].Cases)
}

func TestReadCaseRows_NotParquet(t *testing.T) {
	raw := []byte("date,country,cases\n")
	_, err := ReadCaseRows(bytes.NewReader(raw), int64(len(raw)))
	assert.Error(t, err)
}

func TestWriteRows_EmptyData(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteRows([]ResultRow{}, outputPath))

	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "an empty file still carries a footer")
}

func TestWriteRows_InvalidPath(t *testing.T) {
	err := WriteRows([]PlotRow{}, "/nonexistent/directory/plot.parquet")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}
