package core

import (
	"fmt"
	"math"
	"time"

	"github.com/huangsam/coronacaster/core/algo"
	"github.com/huangsam/coronacaster/core/model"
	"github.com/huangsam/coronacaster/schema"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EvalInput is everything EvaluateFit needs about a sampled model.
type EvalInput struct {
	X         []float64
	Y         []float64
	Dates     []time.Time
	Origin    time.Time // Date of x = 0; zero selects the first observed date
	ModelFunc model.MeanFunc
	Params    []schema.ParameterSummary // Mean-function parameters in model order
	Names     []string                  // Parameters to band; empty selects the combined band
	Sigma     float64                   // Noise mean + std
	Target    *int                      // Days after Origin
	Title     string
	Subtitle  string
	YLabel    string
	Scale     schema.PlotScale
}

// EvalOutput is the diagnostics table and plot series of one evaluation.
type EvalOutput struct {
	Table    *schema.ResultTable
	Plot     *schema.PlotSeries
	Warnings []string
}

// EvaluateFit scores the posterior mean curve against the data, builds the
// sensitivity bands and, when the target lies past the data, the prediction
// with its asymmetric confidence interval.
func EvaluateFit(in EvalInput) (*EvalOutput, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	out := &EvalOutput{Table: schema.NewResultTable()}

	means := make([]float64, len(in.Params))
	p20 := make([]float64, len(in.Params))
	p80 := make([]float64, len(in.Params))
	for i, p := range in.Params {
		means[i], p20[i], p80[i] = p.Mean, p.P20, p.P80
	}
	f := in.ModelFunc

	// Diagnostics on the observed domain.
	modelMean := evalAt(f, means, in.X)
	diff := make([]float64, len(in.Y))
	floats.SubTo(diff, modelMean, in.Y)

	corr := stat.Correlation(modelMean, in.Y, nil)
	if math.IsNaN(corr) {
		out.warn("correlation undefined: model mean or data has zero variance")
	}
	absSum := 0.0
	for _, d := range diff {
		absSum += math.Abs(d)
	}
	out.Table.Set(schema.KeyCorr, corr)
	out.Table.Set(schema.KeyMeanDiff, absSum/float64(len(diff)))
	out.Table.Set(schema.KeyNormOfDiff, floats.Norm(diff, 2))
	out.Table.Set(schema.KeyMaxPosDiff, math.Max(0, floats.Max(diff)))
	out.Table.Set(schema.KeyMaxNegDiff, math.Min(0, floats.Min(diff)))

	start := in.Origin
	if start.IsZero() {
		start = in.Dates[0]
		for _, d := range in.Dates {
			if d.Before(start) {
				start = d
			}
		}
	}
	last := in.Dates[0]
	for _, d := range in.Dates {
		if d.After(last) {
			last = d
		}
	}

	domain := in.X
	domainDates := in.Dates
	forecasting := false
	var targetX float64
	var targetDate time.Time
	if in.Target != nil {
		targetX = float64(*in.Target)
		targetDate = start.AddDate(0, 0, *in.Target)
		forecasting = targetDate.After(last)
	}
	if forecasting {
		n := *in.Target + 1
		domain = make([]float64, n)
		domainDates = make([]time.Time, n)
		for i := range n {
			domain[i] = float64(i)
			domainDates[i] = start.AddDate(0, 0, i)
		}
	}
	fit := evalAt(f, means, domain)

	plot := &schema.PlotSeries{
		Title:         in.Title,
		Subtitle:      in.Subtitle,
		YLabel:        in.YLabel,
		Scale:         in.Scale,
		ObservedDates: in.Dates,
		Observed:      schema.Values(in.Y),
		FitDates:      domainDates,
		Fit:           schema.Values(fit),
		SigmaLower:    make(schema.Values, len(fit)),
		SigmaUpper:    make(schema.Values, len(fit)),
	}
	if plot.Scale == "" {
		plot.Scale = schema.LinScale
	}
	for i, v := range fit {
		plot.SigmaLower[i] = v - in.Sigma
		plot.SigmaUpper[i] = v + in.Sigma
	}

	var fitTarget float64
	if in.Target != nil {
		fitTarget = f(means, targetX)
		if forecasting {
			out.Table.Set(schema.KeyPrediction, fitTarget)
		} else {
			out.Table.Set(schema.KeyTargetFit, fitTarget)
		}
	}

	if len(in.Names) == 0 {
		// Combined mode: every parameter at its P20, then every one at its P80.
		band := envelope("combined", evalAt(f, p20, domain), evalAt(f, p80, domain))
		plot.Bands = append(plot.Bands, band)
		if in.Target != nil {
			lo, hi := orderPair(f(p20, targetX), f(p80, targetX))
			plot.Target = &schema.TargetPoint{
				Date:    targetDate,
				Value:   fitTarget,
				ErrLow:  out.clampDeviation("combined", "low", fitTarget-lo),
				ErrHigh: out.clampDeviation("combined", "high", hi-fitTarget),
			}
		}
		out.Plot = plot
		return out, nil
	}

	var lows, highs []float64
	for _, name := range in.Names {
		idx := indexOf(in.Params, name)
		if idx < 0 {
			return nil, schema.Configf("cannot band unknown parameter %q", name)
		}
		at20 := withParam(means, idx, p20[idx])
		at80 := withParam(means, idx, p80[idx])
		plot.Bands = append(plot.Bands, envelope(name, evalAt(f, at20, domain), evalAt(f, at80, domain)))

		if in.Target != nil {
			lower, upper := orderPair(f(at20, targetX), f(at80, targetX))
			lows = append(lows, out.clampDeviation(name, "low", fitTarget-lower))
			highs = append(highs, out.clampDeviation(name, "high", upper-fitTarget))
		}
	}

	if in.Target != nil {
		point := &schema.TargetPoint{Date: targetDate, Value: fitTarget}
		if forecasting {
			lowHW, highHW, err := algo.CombineHalfWidths(lows, highs, in.Sigma)
			if err != nil {
				return nil, err
			}
			out.Table.Set(schema.KeyPredictionCILow, fitTarget-lowHW)
			out.Table.Set(schema.KeyPredictionCIHigh, fitTarget+highHW)
			point.ErrLow, point.ErrHigh = lowHW, highHW
		}
		plot.Target = point
	}

	out.Plot = plot
	return out, nil
}

func (in EvalInput) validate() error {
	if in.ModelFunc == nil {
		return schema.Configf("evaluation needs a model function")
	}
	if len(in.X) == 0 {
		return schema.Dataf("evaluation needs at least one observation")
	}
	if len(in.X) != len(in.Y) || len(in.X) != len(in.Dates) {
		return schema.Dataf("x, y and dates differ in length: %d, %d, %d", len(in.X), len(in.Y), len(in.Dates))
	}
	if math.IsNaN(in.Sigma) || in.Sigma < 0 {
		return schema.Degeneracyf("noise scale must be a non-negative number, got %v", in.Sigma)
	}
	return nil
}

// clampDeviation returns dev, or 0 with a warning when dev is negative.
func (o *EvalOutput) clampDeviation(name, side string, dev float64) float64 {
	if math.IsNaN(dev) {
		o.warn(fmt.Sprintf("%s: %s deviation is NaN, using 0", name, side))
		return 0
	}
	if dev < 0 {
		o.warn(fmt.Sprintf("%s: %s deviation %.6g is negative, using 0", name, side, dev))
		return 0
	}
	return dev
}

func (o *EvalOutput) warn(msg string) {
	o.Warnings = append(o.Warnings, fmt.Sprintf("%v: %s", schema.ErrNumericDegeneracy, msg))
}

func evalAt(f model.MeanFunc, params, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f(params, x)
	}
	return out
}

func envelope(name string, a, b []float64) schema.Band {
	band := schema.Band{Name: name, Lower: make(schema.Values, len(a)), Upper: make(schema.Values, len(a))}
	for i := range a {
		band.Lower[i], band.Upper[i] = orderPair(a[i], b[i])
	}
	return band
}

func orderPair(a, b float64) (float64, float64) {
	if b < a {
		return b, a
	}
	return a, b
}

func withParam(means []float64, idx int, v float64) []float64 {
	out := append([]float64(nil), means...)
	out[idx] = v
	return out
}

func indexOf(params []schema.ParameterSummary, name string) int {
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}
