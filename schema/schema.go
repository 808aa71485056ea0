// Package schema has configs, models and global variables for all parts of coronacaster.
package schema

import "time"

// CaseRecord is one row of the case distribution dataset.
// Cases and Deaths are daily counts and may be negative when a source revises totals.
type CaseRecord struct {
	Date    time.Time `json:"date"`
	Country string    `json:"country"`
	Cases   float64   `json:"cases"`
	Deaths  float64   `json:"deaths"`
}

// TimeSeries is the observed window handed to the model layer.
type TimeSeries struct {
	Dates []time.Time `json:"dates"` // Calendar date of each observation
	X     []float64   `json:"x"`     // Day offsets from the window start, non-decreasing
	Y     []float64   `json:"y"`     // Cumulative case counts
}

// Len returns the number of observations.
func (ts TimeSeries) Len() int { return len(ts.X) }

// ParameterPrior is a Normal prior for one named model parameter.
// For the noise parameter only Scale is meaningful (half-normal).
type ParameterPrior struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// PriorSet is the fully resolved prior configuration of a model.
type PriorSet struct {
	Family ModelFamily      `json:"family"`
	Order  int              `json:"order,omitempty"`
	Params []ParameterPrior `json:"params"`
	Sigma  ParameterPrior   `json:"sigma"`
}

// Names returns the parameter names in order, followed by the noise name.
func (ps PriorSet) Names() []string {
	names := make([]string, 0, len(ps.Params)+1)
	for _, p := range ps.Params {
		names = append(names, p.Name)
	}
	return append(names, SigmaName)
}

// Lookup returns the prior with the given name, including the noise prior.
func (ps PriorSet) Lookup(name string) (ParameterPrior, bool) {
	if name == SigmaName {
		return ps.Sigma, true
	}
	for _, p := range ps.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterPrior{}, false
}

// PriorOverrides maps a parameter name to a user supplied [mean, scale] pair.
// The noise parameter takes a single [scale] entry.
type PriorOverrides map[string][]float64

// PosteriorTrace holds the post-tuning draws of every parameter.
// All slices have Chains*DrawsPerChain entries and index i of every
// parameter belongs to the same joint sample.
type PosteriorTrace struct {
	Names         []string             `json:"names"`
	Draws         map[string][]float64 `json:"draws"`
	Chains        int                  `json:"chains"`
	DrawsPerChain int                  `json:"draws_per_chain"`
}

// Len returns the number of joint samples.
func (pt *PosteriorTrace) Len() int {
	return pt.Chains * pt.DrawsPerChain
}

// ParameterSummary is the posterior summary used by evaluation.
type ParameterSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	P20  float64 `json:"p20"`
	P80  float64 `json:"p80"`
}

// ForecastOutput is everything a forecast or fit call produces.
type ForecastOutput struct {
	Country  string             `json:"country"`
	Model    string             `json:"model"`
	Family   ModelFamily        `json:"family"`
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	Target   *time.Time         `json:"target,omitempty"`
	DryRun   bool               `json:"dry_run"`
	Priors   PriorSet           `json:"priors"`
	Table    *ResultTable       `json:"table,omitempty"`
	Plot     *PlotSeries        `json:"plot,omitempty"`
	Summary  []ParameterSummary `json:"summary,omitempty"`
	Trace    *PosteriorTrace    `json:"-"`
	Warnings []string           `json:"warnings,omitempty"`
}

// SeriesPoint is one date of a country's cumulative counts.
type SeriesPoint struct {
	Date             time.Time `json:"date"`
	CumulativeCases  float64   `json:"cumulative_cases"`
	CumulativeDeaths float64   `json:"cumulative_deaths"`
}

// CountrySeries is the cumulative case and death history of a country.
type CountrySeries struct {
	Country string        `json:"country"`
	Points  []SeriesPoint `json:"points"`
}

// ExperimentRow is the outcome of one (country, model) forecast in a batch.
type ExperimentRow struct {
	Country string          `json:"country"`
	Model   string          `json:"model"`
	Target  *time.Time      `json:"target,omitempty"`
	Table   *ResultTable    `json:"table,omitempty"`
	Stage   Stage           `json:"stage,omitempty"`
	Error   string          `json:"error,omitempty"`
	Output  *ForecastOutput `json:"-"`
}

// Failed reports whether the forecast for this row errored.
func (r ExperimentRow) Failed() bool { return r.Error != "" }

// ExperimentResult is the outcome of a batch run.
type ExperimentResult struct {
	RunID int64           `json:"run_id,omitempty"`
	Rows  []ExperimentRow `json:"rows"`
}
