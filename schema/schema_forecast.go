package schema

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// ResultRow is one key/value line of a result table.
type ResultRow struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// ResultTable is an insertion-ordered key/value table of scalar results.
type ResultTable struct {
	Rows []ResultRow
}

// NewResultTable creates an empty result table.
func NewResultTable() *ResultTable {
	return &ResultTable{}
}

// Set adds key or replaces its value in place.
func (t *ResultTable) Set(key string, value float64) {
	for i := range t.Rows {
		if t.Rows[i].Key == key {
			t.Rows[i].Value = value
			return
		}
	}
	t.Rows = append(t.Rows, ResultRow{Key: key, Value: value})
}

// Get returns the value stored for key.
func (t *ResultTable) Get(key string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	for _, r := range t.Rows {
		if r.Key == key {
			return r.Value, true
		}
	}
	return 0, false
}

// Has reports whether key is present.
func (t *ResultTable) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (t *ResultTable) Keys() []string {
	keys := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		keys = append(keys, r.Key)
	}
	return keys
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// MarshalJSON writes the table as an ordered JSON object. Non-finite values become null.
func (t *ResultTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := Values{r.Value}.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val[1 : len(val)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Values is a float slice whose JSON form writes NaN and infinities as null.
type Values []float64

// MarshalJSON implements json.Marshaler.
func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	out := make([]*float64, len(v))
	for i := range v {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			continue
		}
		out[i] = &v[i]
	}
	return json.Marshal(out)
}

// Band is a lower/upper envelope over the fit domain.
type Band struct {
	Name  string `json:"name"`
	Lower Values `json:"lower"`
	Upper Values `json:"upper"`
}

// TargetPoint is the prediction at the target date with its asymmetric error bar.
type TargetPoint struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	ErrLow  float64   `json:"err_low"`
	ErrHigh float64   `json:"err_high"`
}

// PlotSeries is the plot-ready output of an evaluation. It carries data only;
// rendering belongs to whoever consumes it.
type PlotSeries struct {
	Title         string       `json:"title"`
	Subtitle      string       `json:"subtitle"`
	YLabel        string       `json:"y_label"`
	Scale         PlotScale    `json:"scale"`
	ObservedDates []time.Time  `json:"observed_dates"`
	Observed      Values       `json:"observed"`
	FitDates      []time.Time  `json:"fit_dates"`
	Fit           Values       `json:"fit"`
	SigmaLower    Values       `json:"sigma_lower"`
	SigmaUpper    Values       `json:"sigma_upper"`
	Bands         []Band       `json:"bands"`
	Target        *TargetPoint `json:"target,omitempty"`
}
