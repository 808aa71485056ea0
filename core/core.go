// Package core has the forecasting pipeline and the entry points used by the CLI.
package core

import (
	"context"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/dataset"
	"github.com/huangsam/coronacaster/internal/outwriter"
	"github.com/huangsam/coronacaster/schema"
)

// ExecutorFunc defines the function signature for executing different commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteForecast forecasts cfg.Country with cfg.ModelKey and prints the result.
// With cfg.DryRun it only prints the resolved priors.
func ExecuteForecast(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	out, err := GetForecastResult(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	if out.DryRun {
		return outwriter.PrintPriors(out, cfg, time.Since(start))
	}
	return outwriter.PrintForecast(out, cfg, time.Since(start))
}

// GetForecastResult loads the dataset and forecasts cfg.Country with cfg.ModelKey.
func GetForecastResult(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.ForecastOutput, error) {
	rows, err := loadRows(ctx, cfg, mgr)
	if err != nil {
		return nil, err
	}
	return Forecast(ctx, NewForecastRequest(cfg, rows, cfg.Country, cfg.ModelKey))
}

// ExecutePriors prints the priors a forecast would sample without sampling.
func ExecutePriors(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	dry := cfg.Clone()
	dry.DryRun = true
	return ExecuteForecast(ctx, dry, mgr)
}

// ExecuteFit fits cfg.ModelKey with its default priors and prints the diagnostics.
func ExecuteFit(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	rows, err := loadRows(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	out, err := Fit(ctx, FitRequest{
		Country:   cfg.Country,
		Rows:      rows,
		ModelKey:  cfg.ModelKey,
		Samples:   cfg.Samples,
		StartDate: cfg.StartDate,
		EndDate:   cfg.EndDate,
		Limit:     cfg.Limit,
		Tune:      tunePtr(cfg.Tune),
		Chains:    cfg.Chains,
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
		Overrides: cfg.Overrides,
		Scale:     cfg.Scale,
		Logger:    contract.Logger(),
	})
	if err != nil {
		return err
	}
	return outwriter.PrintForecast(out, cfg, time.Since(start))
}

// ExecuteSeries prints the cumulative case and death history of cfg.Country.
func ExecuteSeries(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	rows, err := loadRows(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	series, err := dataset.Series(rows, cfg.Country)
	if err != nil {
		return err
	}
	series.Points = windowPoints(series.Points, cfg.StartDate, cfg.EndDate)
	return outwriter.PrintSeries(series, cfg, time.Since(start))
}

// windowPoints keeps the points dated within [start, end]. Nil bounds are open.
func windowPoints(points []schema.SeriesPoint, start, end *time.Time) []schema.SeriesPoint {
	out := points[:0:0]
	for _, p := range points {
		if start != nil && p.Date.Before(*start) {
			continue
		}
		if end != nil && p.Date.After(*end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ExecuteCountries prints the countries present in the dataset.
func ExecuteCountries(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	countries, err := GetCountries(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintCountries(countries, cfg, time.Since(start))
}

// GetCountries returns the sorted country names of the configured dataset.
func GetCountries(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) ([]string, error) {
	rows, err := loadRows(ctx, cfg, mgr)
	if err != nil {
		return nil, err
	}
	return dataset.Countries(rows), nil
}

// ExecuteExperiment forecasts every (country, model) pair of cfg and prints one row per pair.
func ExecuteExperiment(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()
	rows, err := loadRows(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	var runs contract.RunStore
	if mgr != nil {
		runs = mgr.GetRunStore()
	}
	result, err := RunExperiment(ctx, cfg, rows, runs)
	if err != nil {
		return err
	}
	return outwriter.PrintExperiment(result, cfg, time.Since(start))
}

// NewForecastRequest maps the validated config onto a forecast request.
func NewForecastRequest(cfg *contract.Config, rows []schema.CaseRecord, country, modelKey string) ForecastRequest {
	return ForecastRequest{
		Country:     country,
		Rows:        rows,
		ModelKey:    modelKey,
		Samples:     cfg.Samples,
		StartDate:   cfg.StartDate,
		EndDate:     cfg.EndDate,
		Limit:       cfg.Limit,
		TargetDate:  cfg.TargetDate,
		TargetAhead: cfg.TargetAhead,
		Tune:        tunePtr(cfg.Tune),
		Chains:      cfg.Chains,
		Workers:     cfg.Workers,
		Seed:        cfg.Seed,
		DryRun:      cfg.DryRun,
		Combined:    cfg.Combined,
		Overrides:   cfg.Overrides,
		Scale:       cfg.Scale,
		Logger:      contract.Logger(),
	}
}

// loadRows reads the configured dataset through the cache store of mgr.
func loadRows(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) ([]schema.CaseRecord, error) {
	var store contract.CacheStore
	if mgr != nil {
		store = mgr.GetCacheStore()
	}
	rows, err := dataset.Load(ctx, cfg.Source, store, cfg.CacheTTL)
	if err != nil {
		return nil, schema.WrapStage(schema.DataStage, err)
	}
	return rows, nil
}

// tunePtr copies a resolved tune count so requests never alias the config.
func tunePtr(v int) *int { return &v }
