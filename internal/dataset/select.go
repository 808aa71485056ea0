package dataset

import (
	"slices"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/schema"
)

// SelectCountry returns the daily rows of one country sorted by date. The
// aggregate selectors ("World", "all", "") sum every country per date.
// Duplicate dates within a country are summed as well.
func SelectCountry(rows []schema.CaseRecord, country string) ([]schema.CaseRecord, error) {
	country = schema.NormalizeCountry(country)
	world := country == schema.WorldCountry

	byDate := make(map[time.Time]*schema.CaseRecord)
	for _, r := range rows {
		if !world && !strings.EqualFold(r.Country, country) {
			continue
		}
		agg, ok := byDate[r.Date]
		if !ok {
			agg = &schema.CaseRecord{Date: r.Date, Country: country}
			if !world {
				agg.Country = r.Country
			}
			byDate[r.Date] = agg
		}
		agg.Cases += r.Cases
		agg.Deaths += r.Deaths
	}
	if len(byDate) == 0 {
		return nil, schema.Dataf("no rows for country %q", country)
	}

	out := make([]schema.CaseRecord, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b schema.CaseRecord) int { return a.Date.Compare(b.Date) })
	return out, nil
}

// Cumulate returns the running totals of daily cases and deaths.
func Cumulate(rows []schema.CaseRecord) (cases, deaths []float64) {
	cases = make([]float64, len(rows))
	deaths = make([]float64, len(rows))
	var c, d float64
	for i, r := range rows {
		c += r.Cases
		d += r.Deaths
		cases[i], deaths[i] = c, d
	}
	return cases, deaths
}

// Series returns the cumulative case and death history of a country.
func Series(rows []schema.CaseRecord, country string) (schema.CountrySeries, error) {
	daily, err := SelectCountry(rows, country)
	if err != nil {
		return schema.CountrySeries{}, err
	}
	cases, deaths := Cumulate(daily)
	series := schema.CountrySeries{
		Country: daily[0].Country,
		Points:  make([]schema.SeriesPoint, len(daily)),
	}
	for i, r := range daily {
		series.Points[i] = schema.SeriesPoint{Date: r.Date, CumulativeCases: cases[i], CumulativeDeaths: deaths[i]}
	}
	return series, nil
}

// Countries returns the distinct country names in rows, sorted.
func Countries(rows []schema.CaseRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Country] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
