package model

import (
	"fmt"
	"math"

	"github.com/huangsam/coronacaster/schema"
)

// Default noise prior scales per family.
const (
	PolySigma0     = 30.0
	ExpSigma0      = 20.0
	LogisticSigma0 = 20.0
)

// MaxPolyOrder bounds the polynomial order accepted from model keys.
const MaxPolyOrder = 20

// PolyMean is intercept + a1*x + a2*x^2 + ... for any number of coefficients.
func PolyMean(params []float64, x float64) float64 {
	sum := 0.0
	pw := 1.0
	for _, c := range params {
		sum += c * pw
		pw *= x
	}
	return sum
}

// ExpMean is intercept + slope*exp(expo*x) with params (intercept, slope, expo).
func ExpMean(params []float64, x float64) float64 {
	return params[0] + params[1]*math.Exp(params[2]*x)
}

// LogisticMean is intercept + peak/(1+exp(-expo*(x-shifted))) with
// params (intercept, peak, shifted, expo).
func LogisticMean(params []float64, x float64) float64 {
	return params[0] + params[1]/(1+math.Exp(-params[3]*(x-params[2])))
}

// PolyNames returns "intercept", "a1", ... "aN" for a polynomial of order n.
func PolyNames(order int) []string {
	names := []string{"intercept"}
	for k := 1; k <= order; k++ {
		names = append(names, fmt.Sprintf("a%d", k))
	}
	return names
}

// DefaultPriors returns the data-free default priors of a family.
func DefaultPriors(family schema.ModelFamily, order int) (schema.PriorSet, error) {
	switch family {
	case schema.PolyFamily:
		if order < 0 || order > MaxPolyOrder {
			return schema.PriorSet{}, schema.Configf("polynomial order must be within 0..%d, got %d", MaxPolyOrder, order)
		}
		params := []schema.ParameterPrior{{Name: "intercept", Mean: 0, Scale: 20}}
		for k := 1; k <= order; k++ {
			params = append(params, schema.ParameterPrior{
				Name:  fmt.Sprintf("a%d", k),
				Mean:  0,
				Scale: 30 / math.Pow(float64(k), 4),
			})
		}
		return schema.PriorSet{
			Family: family,
			Order:  order,
			Params: params,
			Sigma:  schema.ParameterPrior{Name: schema.SigmaName, Scale: PolySigma0},
		}, nil

	case schema.ExpFamily:
		return schema.PriorSet{
			Family: family,
			Params: []schema.ParameterPrior{
				{Name: "intercept", Mean: 0, Scale: 30},
				{Name: "slope", Mean: 5, Scale: 10},
				{Name: "expo", Mean: 0.7, Scale: 2},
			},
			Sigma: schema.ParameterPrior{Name: schema.SigmaName, Scale: ExpSigma0},
		}, nil

	case schema.LogisticFamily:
		return schema.PriorSet{
			Family: family,
			Params: []schema.ParameterPrior{
				{Name: "intercept", Mean: 0, Scale: 30},
				{Name: "peak", Mean: 1000, Scale: 250},
				{Name: "shifted", Mean: 30, Scale: 10},
				{Name: "expo", Mean: 0.15, Scale: 0.1},
			},
			Sigma: schema.ParameterPrior{Name: schema.SigmaName, Scale: LogisticSigma0},
		}, nil

	default:
		return schema.PriorSet{}, schema.Configf("unknown model family %q", family)
	}
}

// meanFor returns the mean function of a family.
func meanFor(family schema.ModelFamily) (MeanFunc, error) {
	switch family {
	case schema.PolyFamily:
		return PolyMean, nil
	case schema.ExpFamily:
		return ExpMean, nil
	case schema.LogisticFamily:
		return LogisticMean, nil
	default:
		return nil, schema.Configf("unknown model family %q", family)
	}
}

// Poly builds a polynomial model of the given order. Order 0 is a constant fit.
func Poly(order int, overrides schema.PriorOverrides) (*Spec, error) {
	return Build(schema.PolyFamily, order, overrides)
}

// Exp builds the exponential growth model.
func Exp(overrides schema.PriorOverrides) (*Spec, error) {
	return Build(schema.ExpFamily, 0, overrides)
}

// Logistic builds the logistic (S-curve) model.
func Logistic(overrides schema.PriorOverrides) (*Spec, error) {
	return Build(schema.LogisticFamily, 0, overrides)
}

// Build applies overrides on top of the family defaults and returns the model.
func Build(family schema.ModelFamily, order int, overrides schema.PriorOverrides) (*Spec, error) {
	defaults, err := DefaultPriors(family, order)
	if err != nil {
		return nil, err
	}
	priors, err := ApplyOverrides(defaults, overrides)
	if err != nil {
		return nil, err
	}
	return FromPriors(priors)
}

// FromPriors builds a model from an already resolved prior set.
func FromPriors(priors schema.PriorSet) (*Spec, error) {
	mean, err := meanFor(priors.Family)
	if err != nil {
		return nil, err
	}
	want := map[schema.ModelFamily]int{
		schema.PolyFamily:     priors.Order + 1,
		schema.ExpFamily:      3,
		schema.LogisticFamily: 4,
	}[priors.Family]
	if len(priors.Params) != want {
		return nil, schema.Configf("%s model needs %d priors, got %d", priors.Family, want, len(priors.Params))
	}
	return newSpec(priors, mean)
}
