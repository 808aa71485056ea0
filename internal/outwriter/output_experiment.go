package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/parquet"
	"github.com/huangsam/coronacaster/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Width of the Country, Model, Target, Prediction, CI and Label columns.
const experimentFixedWidth = 90

// experimentJSON is the JSON document of a batch run.
type experimentJSON struct {
	RunID  int64               `json:"run_id,omitempty"`
	Total  int                 `json:"total"`
	Failed int                 `json:"failed"`
	Rows   []experimentJSONRow `json:"rows"`
}

type experimentJSONRow struct {
	schema.ExperimentRow
	Label string `json:"label"`
}

// PrintExperiment outputs one line per (country, model) forecast of a batch.
func PrintExperiment(result schema.ExperimentResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, buildExperimentJSON(result))
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeExperimentCSV(w, result, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, experimentParquetRows(result), "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeExperimentTable(w, result, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

// experimentLabel is Failed for errored rows and the fit label otherwise.
func experimentLabel(row schema.ExperimentRow) string {
	if row.Failed() {
		return contract.FailedValue
	}
	corr, ok := row.Table.Get(schema.KeyCorr)
	if !ok {
		return contract.UnknownValue
	}
	return contract.GetPlainLabel(corr)
}

func countFailed(rows []schema.ExperimentRow) int {
	n := 0
	for _, r := range rows {
		if r.Failed() {
			n++
		}
	}
	return n
}

func buildExperimentJSON(result schema.ExperimentResult) experimentJSON {
	doc := experimentJSON{
		RunID:  result.RunID,
		Total:  len(result.Rows),
		Failed: countFailed(result.Rows),
		Rows:   make([]experimentJSONRow, len(result.Rows)),
	}
	for i, r := range result.Rows {
		doc.Rows[i] = experimentJSONRow{ExperimentRow: r, Label: experimentLabel(r)}
	}
	return doc
}

// writeExperimentTable generates and writes the human-readable batch summary.
func writeExperimentTable(w io.Writer, result schema.ExperimentResult, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	title := "Experiment"
	if result.RunID > 0 {
		title = fmt.Sprintf("Experiment run %d", result.RunID)
	}
	if _, err := fmt.Fprintln(w, header(cfg, "🧮", title)); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Country", "Model", "Target", "Prediction", "CI Low", "CI High", "Label", "Note"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	noteWidth := getMaxTableTextWidth(cfg, experimentFixedWidth)
	value := func(row schema.ExperimentRow, key string) string {
		v, ok := row.Table.Get(key)
		if !ok {
			return "-"
		}
		return fmtFloat(v)
	}

	data := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		label := experimentLabel(r)
		note := ""
		if r.Failed() {
			label = colorize(cfg, contract.FailedColor, label)
			note = contract.Truncate(fmt.Sprintf("%s: %s", r.Stage, r.Error), noteWidth)
		} else {
			if corr, ok := r.Table.Get(schema.KeyCorr); ok {
				label = fitLabel(cfg, corr)
			}
			if r.Output != nil && len(r.Output.Warnings) > 0 {
				note = colorize(cfg, contract.WarningColor, fmt.Sprintf("%d %s", len(r.Output.Warnings), contract.WarningValue))
			}
		}
		data = append(data, []string{
			r.Country,
			r.Model,
			formatDate(r.Target),
			value(r, schema.KeyPrediction),
			value(r, schema.KeyPredictionCILow),
			value(r, schema.KeyPredictionCIHigh),
			label,
			note,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	failed := countFailed(result.Rows)
	if _, err := fmt.Fprintf(w, "%d forecasts, %d failed\n", len(result.Rows), failed); err != nil {
		return err
	}
	return writeFooter(w, "Experiment", cfg, duration)
}

// writeExperimentCSV writes one row per forecast with its headline numbers.
func writeExperimentCSV(w io.Writer, result schema.ExperimentResult, fmtFloat func(float64) string) error {
	cols := []string{"country", "model", "target", "prediction", "prediction_ci_low", "prediction_ci_high", "corr", "label", "stage", "error"}
	return writeCSVWithHeader(w, cols, func(cw *csv.Writer) error {
		for _, r := range result.Rows {
			row := []string{r.Country, r.Model, formatDate(r.Target)}
			for _, key := range []string{schema.KeyPrediction, schema.KeyPredictionCILow, schema.KeyPredictionCIHigh, schema.KeyCorr} {
				if v, ok := r.Table.Get(key); ok {
					row = append(row, fmtFloat(v))
				} else {
					row = append(row, "")
				}
			}
			row = append(row, experimentLabel(r), string(r.Stage), r.Error)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// experimentParquetRows converts the batch rows into Parquet rows.
func experimentParquetRows(result schema.ExperimentResult) []parquet.ExperimentRow {
	rows := make([]parquet.ExperimentRow, len(result.Rows))
	for i, r := range result.Rows {
		row := parquet.ExperimentRow{
			Country:    r.Country,
			Model:      r.Model,
			Target:     r.Target,
			Prediction: lookup(r.Table.Get, schema.KeyPrediction),
			CILow:      lookup(r.Table.Get, schema.KeyPredictionCILow),
			CIHigh:     lookup(r.Table.Get, schema.KeyPredictionCIHigh),
			Corr:       lookup(r.Table.Get, schema.KeyCorr),
		}
		if r.Failed() {
			stage, msg := string(r.Stage), r.Error
			row.Stage, row.Error = &stage, &msg
		}
		rows[i] = row
	}
	return rows
}
