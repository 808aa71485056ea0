// Package model builds the Bayesian regression models used for case forecasting.
package model

import (
	"fmt"
	"math"

	"github.com/huangsam/coronacaster/schema"
	"gonum.org/v1/gonum/stat/distuv"
)

// MeanFunc evaluates a model's mean function at x for the given parameter vector.
type MeanFunc func(params []float64, x float64) float64

// Spec is an immutable model description: named Normal priors, a
// half-normal noise prior and a closed-form mean function.
type Spec struct {
	family schema.ModelFamily
	priors schema.PriorSet
	mean   MeanFunc
}

// newSpec validates priors and pairs them with mean.
func newSpec(priors schema.PriorSet, mean MeanFunc) (*Spec, error) {
	for _, p := range priors.Params {
		if !(p.Scale > 0) || math.IsInf(p.Scale, 0) {
			return nil, schema.Configf("prior %q needs a positive scale, got %v", p.Name, p.Scale)
		}
		if math.IsNaN(p.Mean) || math.IsInf(p.Mean, 0) {
			return nil, schema.Configf("prior %q needs a finite mean, got %v", p.Name, p.Mean)
		}
	}
	if !(priors.Sigma.Scale > 0) || math.IsInf(priors.Sigma.Scale, 0) {
		return nil, schema.Configf("noise prior needs a positive scale, got %v", priors.Sigma.Scale)
	}
	priors.Sigma.Name = schema.SigmaName
	return &Spec{family: priors.Family, priors: priors, mean: mean}, nil
}

// Family returns the model family.
func (s *Spec) Family() schema.ModelFamily { return s.family }

// Priors returns the resolved priors backing the model.
func (s *Spec) Priors() schema.PriorSet { return s.priors }

// Names returns the parameter names in order, excluding the noise parameter.
func (s *Spec) Names() []string {
	names := make([]string, len(s.priors.Params))
	for i, p := range s.priors.Params {
		names[i] = p.Name
	}
	return names
}

// NumParams returns the number of mean-function parameters.
func (s *Spec) NumParams() int { return len(s.priors.Params) }

// Dim returns the sampled dimension: the mean parameters plus the noise scale.
func (s *Spec) Dim() int { return len(s.priors.Params) + 1 }

// Scales returns the prior scale of every sampled coordinate, noise last.
func (s *Spec) Scales() []float64 {
	out := make([]float64, 0, s.Dim())
	for _, p := range s.priors.Params {
		out = append(out, p.Scale)
	}
	return append(out, s.priors.Sigma.Scale)
}

// ModelFunc returns the mean function so it can be evaluated outside sampling.
func (s *Spec) ModelFunc() MeanFunc { return s.mean }

// Eval evaluates the mean function at every x.
func (s *Spec) Eval(params, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.mean(params, x)
	}
	return out
}

// LogPrior returns the log prior density of theta = (params..., sigma).
func (s *Spec) LogPrior(theta []float64) float64 {
	if len(theta) != s.Dim() {
		return math.Inf(-1)
	}
	lp := 0.0
	for i, p := range s.priors.Params {
		lp += distuv.Normal{Mu: p.Mean, Sigma: p.Scale}.LogProb(theta[i])
	}
	sigma := theta[len(theta)-1]
	if !(sigma > 0) {
		return math.Inf(-1)
	}
	// Half-normal: twice the zero-mean normal density on the positive axis.
	lp += math.Ln2 + distuv.Normal{Mu: 0, Sigma: s.priors.Sigma.Scale}.LogProb(sigma)
	return lp
}

// LogLikelihood returns the Normal observation log likelihood of y given theta.
func (s *Spec) LogLikelihood(theta, x, y []float64) float64 {
	sigma := theta[len(theta)-1]
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return math.Inf(-1)
	}
	params := theta[:len(theta)-1]
	ll := 0.0
	for i := range x {
		m := s.mean(params, x[i])
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return math.Inf(-1)
		}
		ll += distuv.Normal{Mu: m, Sigma: sigma}.LogProb(y[i])
	}
	return ll
}

// LogPosterior returns the unnormalized log posterior density of theta.
// Invalid points (sigma <= 0, non-finite mean) return -Inf.
func (s *Spec) LogPosterior(theta, x, y []float64) float64 {
	lp := s.LogPrior(theta)
	if math.IsInf(lp, -1) || math.IsNaN(lp) {
		return math.Inf(-1)
	}
	ll := s.LogLikelihood(theta, x, y)
	if math.IsNaN(ll) {
		return math.Inf(-1)
	}
	return lp + ll
}

// CheckData validates an observation window against the model.
func (s *Spec) CheckData(x, y []float64) error {
	if len(x) == 0 || len(y) == 0 {
		return schema.Dataf("no observations")
	}
	if len(x) != len(y) {
		return schema.Dataf("x has %d values but y has %d", len(x), len(y))
	}
	if len(x) < s.Dim() {
		return schema.Dataf("%d observations cannot identify %d free parameters", len(x), s.Dim())
	}
	return nil
}

// String describes the model for logs.
func (s *Spec) String() string {
	if s.family == schema.PolyFamily {
		return fmt.Sprintf("poly%d%v", s.priors.Order, s.Names())
	}
	return fmt.Sprintf("%s%v", s.family, s.Names())
}
