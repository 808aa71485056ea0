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

// PrintSeries outputs the cumulative history of a country.
func PrintSeries(series schema.CountrySeries, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(0)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, series)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"country", "date", "cumulative_cases", "cumulative_deaths"}, func(cw *csv.Writer) error {
				for _, p := range series.Points {
					row := []string{series.Country, p.Date.Format(contract.DateFormat), fmtFloat(p.CumulativeCases), fmtFloat(p.CumulativeDeaths)}
					if err := cw.Write(row); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	case schema.ParquetOut:
		rows := make([]parquet.SeriesRow, len(series.Points))
		for i, p := range series.Points {
			rows[i] = parquet.SeriesRow{
				Country:          series.Country,
				Date:             p.Date,
				CumulativeCases:  p.CumulativeCases,
				CumulativeDeaths: p.CumulativeDeaths,
			}
		}
		return writeParquetFile(cfg.OutputFile, rows, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSeriesTable(w, series, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

// writeSeriesTable writes one row per date of the series.
func writeSeriesTable(w io.Writer, series schema.CountrySeries, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	if _, err := fmt.Fprintln(w, header(cfg, "🦠", series.Country+" cumulative cases")); err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Date", "Cases", "Deaths"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	data := make([][]string, 0, len(series.Points))
	for _, p := range series.Points {
		data = append(data, []string{p.Date.Format(contract.DateFormat), fmtFloat(p.CumulativeCases), fmtFloat(p.CumulativeDeaths)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Showing %d days\n", len(series.Points)); err != nil {
		return err
	}
	return writeFooter(w, "Series", cfg, duration)
}

// PrintCountries outputs the country names present in the dataset.
func PrintCountries(countries []string, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, countries)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVWithHeader(w, []string{"country"}, func(cw *csv.Writer) error {
				for _, c := range countries {
					if err := cw.Write([]string{c}); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	case schema.ParquetOut:
		type countryRow struct {
			Country string `parquet:"country,snappy"`
		}
		rows := make([]countryRow, len(countries))
		for i, c := range countries {
			rows[i] = countryRow{Country: c}
		}
		return writeParquetFile(cfg.OutputFile, rows, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			table := tablewriter.NewWriter(w)
			table.Header([]string{"#", "Country"})
			data := make([][]string, 0, len(countries))
			for i, c := range countries {
				data = append(data, []string{strconv.Itoa(i + 1), contract.Truncate(c, getMaxTableTextWidth(cfg, 10))})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "Showing %d countries\n", len(countries)); err != nil {
				return err
			}
			return writeFooter(w, "Listing", cfg, duration)
		}, "Wrote table")
	}
}
