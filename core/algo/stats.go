// Package algo has the numeric building blocks shared by model evaluation.
package algo

import (
	"math"
	"sort"

	"github.com/huangsam/coronacaster/schema"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Positions of each statistic in the SummaryStats vector.
const (
	StatMin = iota
	StatMax
	StatMean
	StatStd
	StatP10
	StatP20
	StatP50
	StatP80
	StatP90
)

// summaryColumns labels the SummaryStats vector.
var summaryColumns = [9]string{"min", "max", "mean", "stddev", "10%-percentile", "20%-percentile", "median", "80%-percentile", "90%-percentile"}

// SummaryColumns returns the labels of the nine SummaryStats entries.
func SummaryColumns() [9]string {
	return summaryColumns
}

type statsOptions struct {
	nanAwareMinMax bool
}

// StatsOption tunes SummaryStats.
type StatsOption func(*statsOptions)

// WithNaNAwareMinMax makes min and max skip missing values like the other statistics do.
// Without it a NaN anywhere in the input makes min and max NaN.
func WithNaNAwareMinMax() StatsOption {
	return func(o *statsOptions) { o.nanAwareMinMax = true }
}

// SummaryStats returns (min, max, mean, stddev, p10, p20, p50, p80, p90) for xs.
// Mean, population stddev and percentiles ignore NaN values.
func SummaryStats(xs []float64, opts ...StatsOption) ([9]float64, error) {
	var out [9]float64
	var o statsOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(xs) == 0 {
		return out, schema.Dataf("summary statistics of an empty series")
	}
	clean := dropNaN(xs)
	if len(clean) == 0 {
		return out, schema.Dataf("summary statistics of a series with no values")
	}

	if len(clean) < len(xs) && !o.nanAwareMinMax {
		out[StatMin], out[StatMax] = math.NaN(), math.NaN()
	} else {
		out[StatMin], out[StatMax] = floats.Min(clean), floats.Max(clean)
	}

	mean, variance := stat.PopMeanVariance(clean, nil)
	out[StatMean] = mean
	out[StatStd] = math.Sqrt(variance)

	sort.Float64s(clean)
	out[StatP10] = Percentile(clean, 10)
	out[StatP20] = Percentile(clean, 20)
	out[StatP50] = Percentile(clean, 50)
	out[StatP80] = Percentile(clean, 80)
	out[StatP90] = Percentile(clean, 90)
	return out, nil
}

// Summarize reduces a parameter's draws to the mean/std/p20/p80 summary.
func Summarize(name string, draws []float64) (schema.ParameterSummary, error) {
	s, err := SummaryStats(draws)
	if err != nil {
		return schema.ParameterSummary{}, err
	}
	return schema.ParameterSummary{
		Name: name,
		Mean: s[StatMean],
		Std:  s[StatStd],
		P20:  s[StatP20],
		P80:  s[StatP80],
	}, nil
}

// Percentile returns the p-th percentile of sorted data, interpolating
// linearly between the closest ranks at index p/100*(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func dropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
