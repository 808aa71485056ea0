package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/internal/parquet"
	"github.com/huangsam/coronacaster/schema"
)

// Header aliases, lower-cased. ECDC names come first.
var (
	dateColumns    = []string{"daterep", "date"}
	countryColumns = []string{"countriesandterritories", "country", "location"}
	casesColumns   = []string{"cases", "daily_new_cases", "new_cases"}
	deathsColumns  = []string{"deaths", "daily_new_deaths", "new_deaths"}
)

// dateLayouts are tried in order. ECDC publishes day-first dates.
var dateLayouts = []string{time.DateOnly, "02/01/2006"}

// ParseCSV reads case records from a CSV table with a header row.
// Date, country and cases columns are required; deaths is optional.
func ParseCSV(r io.Reader) ([]schema.CaseRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, schema.Dataf("dataset is empty")
	}
	if err != nil {
		return nil, schema.Dataf("reading header: %v", err)
	}
	cols := indexHeader(header)
	dateIdx, countryIdx, casesIdx := cols.find(dateColumns), cols.find(countryColumns), cols.find(casesColumns)
	deathsIdx := cols.find(deathsColumns)
	if dateIdx < 0 || countryIdx < 0 || casesIdx < 0 {
		return nil, schema.Dataf("dataset header %v needs date, country and cases columns", header)
	}

	var rows []schema.CaseRecord
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, schema.Dataf("line %d: %v", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row, err := parseRecord(rec, dateIdx, countryIdx, casesIdx, deathsIdx)
		if err != nil {
			return nil, schema.Dataf("line %d: %v", line, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, schema.Dataf("dataset has a header but no rows")
	}
	return rows, nil
}

// ParseParquet reads case records from a Parquet file with date, country,
// cases and deaths columns.
func ParseParquet(r io.ReaderAt, size int64) ([]schema.CaseRecord, error) {
	raw, err := parquet.ReadCaseRows(r, size)
	if err != nil {
		return nil, schema.Dataf("%v", err)
	}
	if len(raw) == 0 {
		return nil, schema.Dataf("parquet dataset has no rows")
	}
	rows := make([]schema.CaseRecord, len(raw))
	for i, cr := range raw {
		rows[i] = schema.CaseRecord{
			Date:    truncateDay(cr.Date),
			Country: strings.TrimSpace(cr.Country),
			Cases:   cr.Cases,
			Deaths:  cr.Deaths,
		}
	}
	return rows, nil
}

func parseRecord(rec []string, dateIdx, countryIdx, casesIdx, deathsIdx int) (schema.CaseRecord, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := ParseDate(field(dateIdx))
	if err != nil {
		return schema.CaseRecord{}, err
	}
	country := field(countryIdx)
	if country == "" {
		return schema.CaseRecord{}, errors.New("empty country")
	}
	cases, err := parseCount(field(casesIdx))
	if err != nil {
		return schema.CaseRecord{}, err
	}
	deaths, err := parseCount(field(deathsIdx))
	if err != nil {
		return schema.CaseRecord{}, err
	}
	return schema.CaseRecord{Date: date, Country: country, Cases: cases, Deaths: deaths}, nil
}

// ParseDate accepts ISO dates and ECDC day-first dates.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date " + strconv.Quote(s))
}

// parseCount reads a daily count. Empty cells count as zero.
func parseCount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid count " + strconv.Quote(s))
	}
	return v, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type headerIndex map[string]int

func indexHeader(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx
}

func (h headerIndex) find(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}
