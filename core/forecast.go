package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/huangsam/coronacaster/core/algo"
	"github.com/huangsam/coronacaster/core/model"
	"github.com/huangsam/coronacaster/core/sampler"
	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/dataset"
	"github.com/huangsam/coronacaster/schema"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// DefaultSamples is the number of retained draws per chain when a request leaves it zero.
const DefaultSamples = 1000

const day = 24 * time.Hour

// ForecastRequest describes one forecast call. Zero Samples, Chains and
// Workers and a nil Tune select the defaults.
type ForecastRequest struct {
	Country     string
	Rows        []schema.CaseRecord
	ModelKey    string
	Samples     int
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       float64    // Start where cumulative cases first exceed this
	TargetDate  *time.Time // Absolute target
	TargetAhead *int       // Target relative to the window end, used when TargetDate is nil
	Tune        *int       // Zero disables tuning
	Chains      int
	Workers     int
	Seed        int64
	DryRun      bool
	Combined    bool // One combined band instead of per-parameter bands
	Overrides   schema.PriorOverrides
	Scale       schema.PlotScale // Empty picks log for exp, lin otherwise
	Logger      logrus.FieldLogger
}

// FitRequest describes a plain fit without a target.
type FitRequest struct {
	Country   string
	Rows      []schema.CaseRecord
	ModelKey  string
	Samples   int
	StartDate *time.Time
	EndDate   *time.Time
	Limit     float64 // Start where daily cases first exceed this
	Tune      *int
	Chains    int
	Workers   int
	Seed      int64
	Overrides schema.PriorOverrides
	Scale     schema.PlotScale
	Logger    logrus.FieldLogger
}

// ParseModelKey maps a model key such as "poly3", "exp" or "sigmoid" to its family and order.
func ParseModelKey(key string) (schema.ModelFamily, int, error) {
	return model.ParseKey(key)
}

// window is the observation window of a call.
type window struct {
	country string
	start   time.Time
	end     time.Time
	series  schema.TimeSeries
}

// Forecast fits the requested model to a country's cumulative cases and,
// when a target is given, predicts it with an asymmetric interval.
func Forecast(ctx context.Context, req ForecastRequest) (*schema.ForecastOutput, error) {
	family, order, err := ParseModelKey(req.ModelKey)
	if err != nil {
		return nil, schema.WrapStage(schema.ModelStage, err)
	}
	if req.Samples < 0 {
		return nil, schema.WrapStage(schema.ModelStage, schema.Configf("samples must not be negative, got %d", req.Samples))
	}

	win, err := selectWindow(req.Rows, req.Country, req.StartDate, req.EndDate, func(_, cum float64) bool {
		return cum > req.Limit
	}, false)
	if err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}

	target, targetDate, err := win.resolveTarget(req.TargetDate, req.TargetAhead)
	if err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}

	priors, err := ResolveForecastPriors(family, order, win.series.X, win.series.Y, req.Overrides)
	if err != nil {
		return nil, schema.WrapStage(schema.ModelStage, err)
	}
	spec, err := model.FromPriors(priors)
	if err != nil {
		return nil, schema.WrapStage(schema.ModelStage, err)
	}
	if err := spec.CheckData(win.series.X, win.series.Y); err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}

	out := win.output(req.ModelKey, spec)
	out.Target = targetDate
	out.DryRun = req.DryRun
	if req.DryRun {
		return out, nil
	}

	log := loggerOf(req.Logger).WithFields(logrus.Fields{"country": win.country, "model": req.ModelKey})
	run := runParams{
		opts:     samplerOptions(req.Samples, req.Tune, req.Chains, req.Workers, req.Seed, log),
		target:   target,
		combined: req.Combined,
		scale:    req.Scale,
	}
	if err := run.sampleAndEvaluate(ctx, out, spec, win, log); err != nil {
		return nil, err
	}
	return out, nil
}

// DryRun resolves the priors a forecast would use without sampling.
func DryRun(req ForecastRequest) (schema.PriorSet, error) {
	req.DryRun = true
	out, err := Forecast(context.Background(), req)
	if err != nil {
		return schema.PriorSet{}, err
	}
	return out.Priors, nil
}

// Fit samples a model with its default priors over the window that starts
// where daily cases first exceed the limit. y is the running total inside
// the window.
func Fit(ctx context.Context, req FitRequest) (*schema.ForecastOutput, error) {
	family, order, err := ParseModelKey(req.ModelKey)
	if err != nil {
		return nil, schema.WrapStage(schema.ModelStage, err)
	}
	if req.Samples < 0 {
		return nil, schema.WrapStage(schema.ModelStage, schema.Configf("samples must not be negative, got %d", req.Samples))
	}

	win, err := selectWindow(req.Rows, req.Country, req.StartDate, req.EndDate, func(daily, _ float64) bool {
		return daily > req.Limit
	}, true)
	if err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}

	spec, err := model.Build(family, order, req.Overrides)
	if err != nil {
		return nil, schema.WrapStage(schema.ModelStage, err)
	}
	if err := spec.CheckData(win.series.X, win.series.Y); err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}

	out := win.output(req.ModelKey, spec)
	log := loggerOf(req.Logger).WithFields(logrus.Fields{"country": win.country, "model": req.ModelKey})
	run := runParams{
		opts:  samplerOptions(req.Samples, req.Tune, req.Chains, req.Workers, req.Seed, log),
		scale: req.Scale,
	}
	if err := run.sampleAndEvaluate(ctx, out, spec, win, log); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveForecastPriors derives the data-informed default priors of a
// family from the observation window and applies overrides on top. It has
// no side effects, so a dry run reports exactly what a full run samples.
func ResolveForecastPriors(family schema.ModelFamily, order int, x, y []float64, overrides schema.PriorOverrides) (schema.PriorSet, error) {
	if len(x) == 0 || len(x) != len(y) {
		return schema.PriorSet{}, schema.Dataf("prior resolution needs matching non-empty x and y, got %d and %d", len(x), len(y))
	}
	priors, err := model.DefaultPriors(family, order)
	if err != nil {
		return schema.PriorSet{}, err
	}

	ymin, ymax, xmax := floats.Min(y), floats.Max(y), floats.Max(x)
	a10 := 0.0
	if xmax > 0 {
		a10 = (ymax - y[0]) / xmax
	}

	set := func(name string, mean, scale float64) {
		for i := range priors.Params {
			if priors.Params[i].Name == name {
				priors.Params[i].Mean, priors.Params[i].Scale = mean, scale
				return
			}
		}
	}
	set("intercept", ymin, math.Abs(ymin)/20+20)

	switch family {
	case schema.PolyFamily:
		if order >= 1 {
			set("a1", a10, math.Abs(a10)/3+20)
		}
	case schema.ExpFamily:
		set("slope", a10, math.Abs(a10)/3+10)
	case schema.LogisticFamily:
		peak := 1.5 * ymax
		set("peak", peak, math.Max(math.Abs(peak)/3, 1))
		set("shifted", x[steepestIndex(y)], math.Max(xmax/5, 1))
	}

	return model.ApplyOverrides(priors, overrides)
}

// steepestIndex returns the index of the largest one-step increase of y.
func steepestIndex(y []float64) int {
	best, bestInc := 0, math.Inf(-1)
	for i := 1; i < len(y); i++ {
		if inc := y[i] - y[i-1]; inc > bestInc {
			best, bestInc = i, inc
		}
	}
	return best
}

// selectWindow filters a country's rows to [start, end]. A nil start is the
// first date where begin(daily, cumulative) holds; a nil end is the last
// date with positive daily cases. With windowSum the running total restarts
// at the window start.
func selectWindow(rows []schema.CaseRecord, country string, start, end *time.Time, begin func(daily, cum float64) bool, windowSum bool) (*window, error) {
	daily, err := dataset.SelectCountry(rows, country)
	if err != nil {
		return nil, err
	}
	cum, _ := dataset.Cumulate(daily)

	win := &window{country: daily[0].Country}
	if start != nil {
		win.start = *start
	} else {
		i := 0
		for i < len(daily) && !begin(daily[i].Cases, cum[i]) {
			i++
		}
		if i == len(daily) {
			return nil, schema.Dataf("%s never reaches the start threshold", win.country)
		}
		win.start = daily[i].Date
	}
	if end != nil {
		win.end = *end
	} else {
		i := len(daily) - 1
		for i >= 0 && !(daily[i].Cases > 0) {
			i--
		}
		if i < 0 {
			return nil, schema.Dataf("%s has no day with new cases", win.country)
		}
		win.end = daily[i].Date
	}
	if win.end.Before(win.start) {
		return nil, schema.Dataf("window end %s is before its start %s",
			win.end.Format(time.DateOnly), win.start.Format(time.DateOnly))
	}

	running := 0.0
	for i, r := range daily {
		if r.Date.Before(win.start) || r.Date.After(win.end) {
			continue
		}
		y := cum[i]
		if windowSum {
			running += r.Cases
			y = running
		}
		win.series.Dates = append(win.series.Dates, r.Date)
		win.series.X = append(win.series.X, float64(r.Date.Sub(win.start)/day))
		win.series.Y = append(win.series.Y, y)
	}
	if win.series.Len() == 0 {
		return nil, schema.Dataf("no rows for %s between %s and %s", win.country,
			win.start.Format(time.DateOnly), win.end.Format(time.DateOnly))
	}
	return win, nil
}

// resolveTarget returns the target as a day offset from the window start.
func (w *window) resolveTarget(date *time.Time, ahead *int) (*int, *time.Time, error) {
	var t time.Time
	switch {
	case date != nil:
		t = *date
	case ahead != nil:
		if *ahead < 0 {
			return nil, nil, schema.Configf("target offset must not be negative, got %d", *ahead)
		}
		t = w.end.AddDate(0, 0, *ahead)
	default:
		return nil, nil, nil
	}
	if t.Before(w.start) {
		return nil, nil, schema.Configf("target %s is before the window start %s",
			t.Format(time.DateOnly), w.start.Format(time.DateOnly))
	}
	offset := int(t.Sub(w.start) / day)
	return &offset, &t, nil
}

func (w *window) output(key string, spec *model.Spec) *schema.ForecastOutput {
	return &schema.ForecastOutput{
		Country: w.country,
		Model:   key,
		Family:  spec.Family(),
		Start:   w.start,
		End:     w.end,
		Priors:  spec.Priors(),
	}
}

type runParams struct {
	opts     sampler.Options
	target   *int
	combined bool
	scale    schema.PlotScale
}

// sampleAndEvaluate fills out with the trace, summaries, table and plot.
func (p runParams) sampleAndEvaluate(ctx context.Context, out *schema.ForecastOutput, spec *model.Spec, win *window, log logrus.FieldLogger) error {
	began := time.Now()
	trace, err := sampler.Sample(ctx, spec, win.series.X, win.series.Y, p.opts)
	if err != nil {
		return schema.WrapStage(schema.SamplingStage, err)
	}
	log.WithFields(logrus.Fields{"draws": trace.Len(), "elapsed": time.Since(began).Round(time.Millisecond)}).Debug("Sampling finished")

	summaries := make([]schema.ParameterSummary, 0, len(trace.Names))
	for _, name := range trace.Names {
		s, err := algo.Summarize(name, trace.Draws[name])
		if err != nil {
			return schema.WrapStage(schema.EvaluationStage, err)
		}
		summaries = append(summaries, s)
	}
	noise := summaries[len(summaries)-1]

	names := spec.Names()
	if p.combined {
		names = nil
	}
	scale := p.scale
	if scale == "" {
		scale = schema.LinScale
		if spec.Family() == schema.ExpFamily {
			scale = schema.LogScale
		}
	}

	eval, err := EvaluateFit(EvalInput{
		X:         win.series.X,
		Y:         win.series.Y,
		Dates:     win.series.Dates,
		Origin:    win.start,
		ModelFunc: spec.ModelFunc(),
		Params:    summaries[:len(summaries)-1],
		Names:     names,
		Sigma:     noise.Mean + noise.Std,
		Target:    p.target,
		Title:     fmt.Sprintf("%s COVID-19 cases %s model", win.country, out.Model),
		Subtitle:  fmt.Sprintf("%s to %s", win.start.Format("02.01.2006"), win.end.Format("02.01.2006")),
		YLabel:    "cumulative cases",
		Scale:     scale,
	})
	if err != nil {
		return schema.WrapStage(schema.EvaluationStage, err)
	}

	for _, s := range summaries {
		meanKey, stdKey := schema.ParamRowKeys(s.Name)
		eval.Table.Set(meanKey, s.Mean)
		eval.Table.Set(stdKey, s.Std)
	}
	for _, w := range eval.Warnings {
		log.Warn(w)
	}

	out.Table = eval.Table
	out.Plot = eval.Plot
	out.Summary = summaries
	out.Trace = trace
	out.Warnings = eval.Warnings
	return nil
}

func samplerOptions(samples int, tunePtr *int, chains, workers int, seed int64, log logrus.FieldLogger) sampler.Options {
	if samples == 0 {
		samples = DefaultSamples
	}
	tune := sampler.DefaultTune
	if tunePtr != nil {
		tune = *tunePtr
	}
	if chains == 0 {
		chains = sampler.DefaultChains
	}
	if workers == 0 {
		workers = sampler.DefaultWorkers
	}
	return sampler.Options{Draws: samples, Tune: tune, Chains: chains, Workers: workers, Seed: seed, Logger: log}
}

func loggerOf(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return contract.Logger()
}
