package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/coronacaster/internal/contract"
	"github.com/huangsam/coronacaster/internal/dataset"
	"github.com/huangsam/coronacaster/schema"
	"github.com/sirupsen/logrus"
)

// AllCountries as the only experiment country expands to every country in the dataset.
const AllCountries = "*"

// RunExperiment forecasts every (country, model) pair in order. A failed
// pair is recorded with its stage and the sweep moves on; it is never
// retried. Results go to runs when it is non-nil.
func RunExperiment(ctx context.Context, cfg *contract.Config, rows []schema.CaseRecord, runs contract.RunStore) (schema.ExperimentResult, error) {
	countries := experimentCountries(cfg.Countries, rows)
	if len(countries) == 0 || len(cfg.Models) == 0 {
		return schema.ExperimentResult{}, schema.Configf("experiment needs at least one country and one model")
	}
	log := contract.Logger().WithField("pairs", len(countries)*len(cfg.Models))

	// --- 0. Begin Run Tracking (if configured) ---
	var result schema.ExperimentResult
	if runs != nil {
		configParams := map[string]any{
			"countries": countries,
			"models":    cfg.Models,
			"samples":   cfg.Samples,
			"tune":      cfg.Tune,
			"chains":    cfg.Chains,
			"seed":      cfg.Seed,
			"source":    cfg.Source,
		}
		if cfg.TargetDate != nil {
			configParams["target"] = cfg.TargetDate.Format(contract.DateFormat)
		} else if cfg.TargetAhead != nil {
			configParams["target"] = fmt.Sprintf("+%dd", *cfg.TargetAhead)
		}
		runID, err := runs.BeginRun(time.Now(), configParams)
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
		} else if runID > 0 {
			ctx = withRunID(ctx, runID)
			result.RunID = runID
		}
	}

	// --- 1. Sweep ---
	failed := 0
	for _, country := range countries {
		for _, key := range cfg.Models {
			if err := ctx.Err(); err != nil {
				endRun(ctx, runs, len(result.Rows), failed)
				return result, err
			}
			row := forecastRow(ctx, cfg, rows, country, key, log)
			if row.Failed() {
				failed++
			}
			recordRow(ctx, runs, row)
			result.Rows = append(result.Rows, row)
		}
	}

	// --- 2. End Run Tracking ---
	endRun(ctx, runs, len(result.Rows), failed)
	log.WithField("failed", failed).Info("Experiment finished")
	return result, nil
}

func forecastRow(ctx context.Context, cfg *contract.Config, rows []schema.CaseRecord, country, key string, log logrus.FieldLogger) schema.ExperimentRow {
	req := NewForecastRequest(cfg, rows, country, key)
	req.DryRun = false
	out, err := Forecast(ctx, req)

	row := schema.ExperimentRow{Country: schema.NormalizeCountry(country), Model: key}
	if err != nil {
		row.Stage = schema.StageOf(err)
		row.Error = err.Error()
		log.WithFields(logrus.Fields{"country": row.Country, "model": key, "stage": row.Stage}).WithError(err).Warn("Forecast failed")
		return row
	}
	row.Country = out.Country
	row.Target = out.Target
	row.Table = out.Table
	row.Output = out
	return row
}

func recordRow(ctx context.Context, runs contract.RunStore, row schema.ExperimentRow) {
	runID, ok := getRunID(ctx)
	if runs == nil || !ok {
		return
	}
	if err := runs.RecordForecast(schema.NewForecastResultRecord(runID, row, time.Now())); err != nil {
		contract.LogWarn(fmt.Sprintf("Run tracking failed for %s/%s", row.Country, row.Model), err)
	}
}

func endRun(ctx context.Context, runs contract.RunStore, total, failed int) {
	runID, ok := getRunID(ctx)
	if runs == nil || !ok {
		return
	}
	if err := runs.EndRun(runID, time.Now(), total, failed); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}

// experimentCountries expands AllCountries and drops duplicates, keeping order.
func experimentCountries(requested []string, rows []schema.CaseRecord) []string {
	if len(requested) == 1 && strings.TrimSpace(requested[0]) == AllCountries {
		return dataset.Countries(rows)
	}
	var out []string
	for _, c := range requested {
		c = schema.NormalizeCountry(c)
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
