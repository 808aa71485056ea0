package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParamRowKeys returns the "<name>_mean" and "<name>_std" row keys for a parameter.
func ParamRowKeys(name string) (meanKey, stdKey string) {
	return name + "_mean", name + "_std"
}

// NormalizeCountry trims a country selector and maps the aggregate aliases to WorldCountry.
func NormalizeCountry(country string) string {
	country = strings.TrimSpace(country)
	if IsWorld(country) {
		return WorldCountry
	}
	return country
}

// ParsePriorOverrides reads "name=mean,scale;sigma=scale" into prior overrides.
func ParsePriorOverrides(s string) (PriorOverrides, error) {
	out := PriorOverrides{}
	for part := range strings.SplitSeq(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, raw, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, Configf("prior override %q must look like name=mean,scale", part)
		}
		var vals []float64
		for field := range strings.SplitSeq(raw, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, Configf("prior override %q: %v", part, err)
			}
			vals = append(vals, v)
		}
		out[name] = vals
	}
	return out, nil
}

// finitePtr returns a pointer to v, or nil when v is missing or non-finite.
func finitePtr(v float64, ok bool) *float64 {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NewForecastResultRecord flattens an experiment row into its stored form.
func NewForecastResultRecord(runID int64, row ExperimentRow, recordedAt time.Time) ForecastResultRecord {
	rec := ForecastResultRecord{
		RunID:      runID,
		Country:    row.Country,
		Model:      row.Model,
		RecordedAt: recordedAt,
		TargetDate: row.Target,
		Status:     ForecastOK,
	}
	if row.Failed() {
		rec.Status = ForecastFailed
		stage := string(row.Stage)
		msg := row.Error
		rec.ErrorStage = &stage
		rec.ErrorMessage = &msg
	}
	if row.Table == nil {
		return rec
	}

	get := func(key string) *float64 { return finitePtr(row.Table.Get(key)) }
	rec.Prediction = get(KeyPrediction)
	rec.PredictionCILow = get(KeyPredictionCILow)
	rec.PredictionCIHigh = get(KeyPredictionCIHigh)
	rec.TargetFit = get(KeyTargetFit)
	rec.Corr = get(KeyCorr)
	rec.MeanDiff = get(KeyMeanDiff)
	rec.NormOfDiff = get(KeyNormOfDiff)
	rec.MaxPosDiff = get(KeyMaxPosDiff)
	rec.MaxNegDiff = get(KeyMaxNegDiff)

	params := NewResultTable()
	for _, r := range row.Table.Rows {
		if strings.HasSuffix(r.Key, "_mean") || strings.HasSuffix(r.Key, "_std") {
			params.Set(r.Key, r.Value)
		}
	}
	if params.Len() > 0 {
		if data, err := json.Marshal(params); err == nil {
			s := string(data)
			rec.Parameters = &s
		}
	}
	return rec
}
