package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/parquet"
	"github.com/huangsam/coronacaster/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// writeForecastTable generates and writes the human-readable forecast report.
func writeForecastTable(w io.Writer, out *schema.ForecastOutput, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	if err := writeForecastHeader(w, out, cfg); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Key", "Value"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	if out.Table != nil {
		for _, r := range out.Table.Rows {
			data = append(data, []string{r.Key, fmtFloat(r.Value)})
		}
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if corr, ok := out.Table.Get(schema.KeyCorr); ok {
		if _, err := fmt.Fprintf(w, "Fit: %s (corr %s)\n", fitLabel(cfg, corr), fmtFloat(corr)); err != nil {
			return err
		}
	}
	if out.Target != nil && out.Plot != nil && out.Plot.Target != nil {
		t := out.Plot.Target
		if _, err := fmt.Fprintf(w, "Forecast for %s: %s (-%s / +%s)\n",
			t.Date.Format(contract.DateFormat), fmtFloat(t.Value), fmtFloat(t.ErrLow), fmtFloat(t.ErrHigh)); err != nil {
			return err
		}
	}

	if len(out.Summary) > 0 {
		if err := writeSummaryTable(w, out.Summary, fmtFloat); err != nil {
			return err
		}
	}

	maxWidth := getMaxTableTextWidth(cfg, 0)
	for _, msg := range out.Warnings {
		line := contract.Truncate(fmt.Sprintf("%s: %s", contract.WarningValue, msg), maxWidth)
		if _, err := fmt.Fprintln(w, colorize(cfg, contract.WarningColor, line)); err != nil {
			return err
		}
	}
	return writeFooter(w, "Forecast", cfg, duration)
}

// writeForecastHeader prints the title block shared by forecast and prior reports.
func writeForecastHeader(w io.Writer, out *schema.ForecastOutput, cfg *contract.Config) error {
	title := fmt.Sprintf("%s %s model", out.Country, out.Model)
	subtitle := fmt.Sprintf("%s to %s", out.Start.Format(contract.DateFormat), out.End.Format(contract.DateFormat))
	if out.Plot != nil {
		title, subtitle = out.Plot.Title, out.Plot.Subtitle
	}
	icon := "📈"
	if out.DryRun {
		icon = "🧪"
		title += " (dry run)"
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", header(cfg, icon, title), subtitle)
	return err
}

// writeSummaryTable writes the posterior summary of every parameter.
func writeSummaryTable(w io.Writer, summary []schema.ParameterSummary, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Parameter", "Mean", "Std", "P20", "P80"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	data := make([][]string, 0, len(summary))
	for _, s := range summary {
		data = append(data, []string{s.Name, fmtFloat(s.Mean), fmtFloat(s.Std), fmtFloat(s.P20), fmtFloat(s.P80)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeForecastCSV writes the result table as key,value rows.
func writeForecastCSV(w io.Writer, out *schema.ForecastOutput, fmtFloat func(float64) string) error {
	return writeCSVWithHeader(w, []string{"country", "model", "key", "value"}, func(cw *csv.Writer) error {
		if out.Table == nil {
			return nil
		}
		for _, r := range out.Table.Rows {
			if err := cw.Write([]string{out.Country, out.Model, r.Key, fmtFloat(r.Value)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// forecastParquetRows flattens the result table into Parquet rows.
func forecastParquetRows(out *schema.ForecastOutput) []parquet.ResultRow {
	rows := make([]parquet.ResultRow, 0, out.Table.Len())
	if out.Table == nil {
		return rows
	}
	for _, r := range out.Table.Rows {
		rows = append(rows, parquet.ResultRow{
			Country: out.Country,
			Model:   out.Model,
			Key:     r.Key,
			Value:   finite(r.Value),
		})
	}
	return rows
}

// plotRows flattens a plot series into one row per (series, date) point.
func plotRows(plot *schema.PlotSeries) []parquet.PlotRow {
	var rows []parquet.PlotRow
	add := func(name string, dates []time.Time, values schema.Values) {
		for i, v := range values {
			if i >= len(dates) {
				break
			}
			rows = append(rows, parquet.PlotRow{Series: name, Date: dates[i], Value: finite(v)})
		}
	}
	add("observed", plot.ObservedDates, plot.Observed)
	add("fit", plot.FitDates, plot.Fit)
	add("sigma_lower", plot.FitDates, plot.SigmaLower)
	add("sigma_upper", plot.FitDates, plot.SigmaUpper)
	for _, b := range plot.Bands {
		add(b.Name+"_lower", plot.FitDates, b.Lower)
		add(b.Name+"_upper", plot.FitDates, b.Upper)
	}
	if t := plot.Target; t != nil {
		add("target", []time.Time{t.Date}, schema.Values{t.Value})
		add("target_low", []time.Time{t.Date}, schema.Values{t.Value - t.ErrLow})
		add("target_high", []time.Time{t.Date}, schema.Values{t.Value + t.ErrHigh})
	}
	return rows
}

// writePlotCSV writes the plot series in long format.
func writePlotCSV(w io.Writer, plot *schema.PlotSeries) error {
	return writeCSVWithHeader(w, []string{"series", "date", "value"}, func(cw *csv.Writer) error {
		for _, r := range plotRows(plot) {
			value := ""
			if r.Value != nil {
				value = strconv.FormatFloat(*r.Value, 'g', -1, 64)
			}
			if err := cw.Write([]string{r.Series, r.Date.Format(contract.DateFormat), value}); err != nil {
				return err
			}
		}
		return nil
	})
}

// priorRows lists the resolved priors with the noise prior last.
func priorRows(ps schema.PriorSet) []schema.ParameterPrior {
	rows := make([]schema.ParameterPrior, 0, len(ps.Params)+1)
	rows = append(rows, ps.Params...)
	sigma := ps.Sigma
	sigma.Name = schema.SigmaName
	return append(rows, sigma)
}

// writePriorsTable writes the human-readable prior report.
func writePriorsTable(w io.Writer, out *schema.ForecastOutput, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	if err := writeForecastHeader(w, out, cfg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Family: %s\n", out.Family); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Parameter", "Mean", "Scale"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var data [][]string
	for _, p := range priorRows(out.Priors) {
		mean := fmtFloat(p.Mean)
		if p.Name == schema.SigmaName {
			mean = "half-normal"
		}
		data = append(data, []string{p.Name, mean, fmtFloat(p.Scale)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	return writeFooter(w, "Dry run", cfg, duration)
}

// writePriorsCSV writes one row per resolved prior.
func writePriorsCSV(w io.Writer, out *schema.ForecastOutput, fmtFloat func(float64) string) error {
	return writeCSVWithHeader(w, []string{"model", "name", "mean", "scale"}, func(cw *csv.Writer) error {
		for _, p := range priorRows(out.Priors) {
			if err := cw.Write([]string{out.Model, p.Name, fmtFloat(p.Mean), fmtFloat(p.Scale)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// priorParquetRows converts the resolved priors into Parquet rows.
func priorParquetRows(out *schema.ForecastOutput) []parquet.PriorRow {
	priors := priorRows(out.Priors)
	rows := make([]parquet.PriorRow, len(priors))
	for i, p := range priors {
		rows[i] = parquet.PriorRow{Model: out.Model, Name: p.Name, Mean: p.Mean, Scale: p.Scale}
	}
	return rows
}
