package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	pq "github.com/huangsam/coronacaster/internal/parquet"
	"github.com/huangsam/coronacaster/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func testConfig(output schema.OutputMode, outputFile string) *contract.Config {
	return &contract.Config{
		Output:       output,
		OutputFile:   outputFile,
		Precision:    2,
		Workers:      4,
		Width:        120,
		CacheBackend: schema.SQLiteBackend,
	}
}

func sampleForecast() *schema.ForecastOutput {
	table := schema.NewResultTable()
	table.Set(schema.KeyCorr, 0.996)
	table.Set(schema.KeyMeanDiff, -1.25)
	table.Set(schema.KeyNormOfDiff, 3.5)
	table.Set(schema.KeyMaxPosDiff, 2)
	table.Set(schema.KeyMaxNegDiff, -2.5)
	table.Set(schema.KeyPrediction, 150)
	table.Set(schema.KeyPredictionCILow, 140)
	table.Set(schema.KeyPredictionCIHigh, 165)
	table.Set("a1_mean", 10)
	table.Set("a1_std", 0.5)

	target := day(10)
	return &schema.ForecastOutput{
		Country: "Testland",
		Model:   "poly1",
		Family:  schema.PolyFamily,
		Start:   day(0),
		End:     day(2),
		Target:  &target,
		Priors: schema.PriorSet{
			Family: schema.PolyFamily,
			Order:  1,
			Params: []schema.ParameterPrior{{Name: "a0", Mean: 0, Scale: 10}, {Name: "a1", Mean: 10, Scale: 5}},
			Sigma:  schema.ParameterPrior{Name: schema.SigmaName, Scale: 20},
		},
		Table: table,
		Plot: &schema.PlotSeries{
			Title:         "Testland COVID-19 cases poly1 model",
			Subtitle:      "01.03.2020 to 03.03.2020",
			YLabel:        "cumulative cases",
			Scale:         schema.LinScale,
			ObservedDates: []time.Time{day(0), day(1), day(2)},
			Observed:      schema.Values{1, 11, 21},
			FitDates:      []time.Time{day(0), day(1)},
			Fit:           schema.Values{1, 11},
			SigmaLower:    schema.Values{0, 10},
			SigmaUpper:    schema.Values{2, 12},
			Bands:         []schema.Band{{Name: "a1", Lower: schema.Values{1, 10}, Upper: schema.Values{1, 12}}},
			Target:        &schema.TargetPoint{Date: target, Value: 150, ErrLow: 10, ErrHigh: 15},
		},
		Summary: []schema.ParameterSummary{
			{Name: "a0", Mean: 1, Std: 0.1, P20: 0.9, P80: 1.1},
			{Name: "a1", Mean: 10, Std: 0.5, P20: 9.6, P80: 10.4},
		},
		Warnings: []string{"numeric degeneracy: clamped a1 low deviation"},
	}
}

func TestWriteForecastTable(t *testing.T) {
	out := sampleForecast()
	cfg := testConfig(schema.TextOut, "")
	fmtFloat, _ := createFormatters(cfg.Precision)

	var buf bytes.Buffer
	require.NoError(t, writeForecastTable(&buf, out, cfg, fmtFloat, 1500*time.Millisecond))
	text := buf.String()

	assert.True(t, strings.HasPrefix(text, "Testland COVID-19 cases poly1 model\n01.03.2020 to 03.03.2020\n"))
	for _, want := range []string{
		"prediction_CI_low", "140.00", "a1_std",
		"Fit: Strong (corr 1.00)",
		"Forecast for 2020-03-11: 150.00 (-10.00 / +15.00)",
		"P20", "9.60",
		"Warning: numeric degeneracy",
		"Forecast completed in 1.5s with 4 workers. Cache backend: sqlite",
	} {
		assert.Contains(t, text, want)
	}
}

func TestWriteForecastTableEmojis(t *testing.T) {
	out := sampleForecast()
	cfg := testConfig(schema.TextOut, "")
	cfg.UseEmojis = true
	fmtFloat, _ := createFormatters(0)

	var buf bytes.Buffer
	require.NoError(t, writeForecastTable(&buf, out, cfg, fmtFloat, time.Second))
	assert.True(t, strings.HasPrefix(buf.String(), "📈 Testland"))
}

func TestWriteForecastCSV(t *testing.T) {
	out := sampleForecast()
	fmtFloat, _ := createFormatters(1)

	var buf bytes.Buffer
	require.NoError(t, writeForecastCSV(&buf, out, fmtFloat))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, out.Table.Len()+1)
	assert.Equal(t, []string{"country", "model", "key", "value"}, records[0])
	assert.Equal(t, []string{"Testland", "poly1", "corr", "1.0"}, records[1])
	assert.Equal(t, []string{"Testland", "poly1", "a1_std", "0.5"}, records[len(records)-1])
}

func TestPrintForecastJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.json")
	require.NoError(t, PrintForecast(sampleForecast(), testConfig(schema.JSONOut, path), time.Second))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(content, &doc))

	assert.Equal(t, "Testland", doc["country"])
	assert.Equal(t, contract.StrongValue, doc["label"])
	assert.NotContains(t, doc, "Trace")
	table, ok := doc["table"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 150.0, table[schema.KeyPrediction])
}

func TestPrintForecastParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.parquet")
	out := sampleForecast()
	require.NoError(t, PrintForecast(out, testConfig(schema.ParquetOut, path), time.Second))

	rows, err := parquet.ReadFile[pq.ResultRow](path)
	require.NoError(t, err)
	require.Len(t, rows, out.Table.Len())
	assert.Equal(t, schema.KeyCorr, rows[0].Key)
	require.NotNil(t, rows[0].Value)
	assert.InDelta(t, 0.996, *rows[0].Value, 1e-12)
}

func TestPrintForecastWithPlotFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(schema.CSVOut, filepath.Join(dir, "forecast.csv"))
	cfg.PlotFile = filepath.Join(dir, "plot.json")

	require.NoError(t, PrintForecast(sampleForecast(), cfg, time.Second))

	content, err := os.ReadFile(cfg.PlotFile)
	require.NoError(t, err)
	var plot schema.PlotSeries
	require.NoError(t, json.Unmarshal(content, &plot))
	assert.Equal(t, "cumulative cases", plot.YLabel)
	assert.Len(t, plot.Observed, 3)
	require.NotNil(t, plot.Target)
	assert.Equal(t, 15.0, plot.Target.ErrHigh)
}

func TestPrintForecastNil(t *testing.T) {
	assert.Error(t, PrintForecast(nil, testConfig(schema.TextOut, ""), 0))
}

func TestPrintPlot(t *testing.T) {
	plot := sampleForecast().Plot
	dir := t.TempDir()

	t.Run("csv", func(t *testing.T) {
		path := filepath.Join(dir, "plot.csv")
		require.NoError(t, PrintPlot(plot, path))
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		assert.Equal(t, "series,date,value", lines[0])
		assert.Equal(t, "observed,2020-03-01,1", lines[1])
		assert.Contains(t, lines, "a1_upper,2020-03-02,12")
		assert.Contains(t, lines, "target_low,2020-03-11,140")
		assert.Contains(t, lines, "target_high,2020-03-11,165")
	})

	t.Run("parquet", func(t *testing.T) {
		path := filepath.Join(dir, "plot.parquet")
		require.NoError(t, PrintPlot(plot, path))
		rows, err := parquet.ReadFile[pq.PlotRow](path)
		require.NoError(t, err)
		assert.Len(t, rows, len(plotRows(plot)))
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.ErrorContains(t, PrintPlot(plot, filepath.Join(dir, "plot.png")), "unsupported plot file extension")
	})

	t.Run("nil", func(t *testing.T) {
		assert.Error(t, PrintPlot(nil, filepath.Join(dir, "plot.json")))
	})
}

func TestPlotRows(t *testing.T) {
	plot := sampleForecast().Plot
	plot.Fit = schema.Values{1, 11, 99} // longer than FitDates
	rows := plotRows(plot)

	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Series]++
	}
	assert.Equal(t, 3, counts["observed"])
	assert.Equal(t, 2, counts["fit"])
	assert.Equal(t, 2, counts["a1_lower"])
	assert.Equal(t, 1, counts["target"])
}

func TestPrintPriors(t *testing.T) {
	out := sampleForecast()
	out.DryRun = true
	out.Table, out.Plot, out.Summary, out.Warnings = nil, nil, nil, nil

	t.Run("table", func(t *testing.T) {
		cfg := testConfig(schema.TextOut, "")
		fmtFloat, _ := createFormatters(cfg.Precision)
		var buf bytes.Buffer
		require.NoError(t, writePriorsTable(&buf, out, cfg, fmtFloat, time.Second))
		text := buf.String()
		assert.Contains(t, text, "Testland poly1 model (dry run)")
		assert.Contains(t, text, "2020-03-01 to 2020-03-03")
		assert.Contains(t, text, "Family: poly")
		assert.Contains(t, text, "half-normal")
		assert.Contains(t, text, "Dry run completed in")
	})

	t.Run("csv", func(t *testing.T) {
		fmtFloat, _ := createFormatters(1)
		var buf bytes.Buffer
		require.NoError(t, writePriorsCSV(&buf, out, fmtFloat))
		assert.Equal(t, "model,name,mean,scale\npoly1,a0,0.0,10.0\npoly1,a1,10.0,5.0\npoly1,sigma,0.0,20.0\n", buf.String())
	})

	t.Run("parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "priors.parquet")
		require.NoError(t, PrintPriors(out, testConfig(schema.ParquetOut, path), time.Second))
		rows, err := parquet.ReadFile[pq.PriorRow](path)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, schema.SigmaName, rows[2].Name)
		assert.Equal(t, 20.0, rows[2].Scale)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "priors.json")
		require.NoError(t, PrintPriors(out, testConfig(schema.JSONOut, path), time.Second))
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		var doc schema.ForecastOutput
		require.NoError(t, json.Unmarshal(content, &doc))
		assert.True(t, doc.DryRun)
		assert.Len(t, doc.Priors.Params, 2)
	})
}
