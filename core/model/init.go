package model

import (
	"math"

	"github.com/huangsam/coronacaster/schema"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// InitialPoint returns a starting theta = (params..., sigma) with a finite
// log posterior when one can be found. Polynomials start from the least
// squares fit. Exponentials start from a log-linear fit refined over the
// exponent. Logistic curves keep the prior location and rate and refit
// intercept and peak. The noise scale starts at the residual RMS, capped at
// the spread of the data.
func (s *Spec) InitialPoint(x, y []float64) []float64 {
	params := make([]float64, s.NumParams())
	for i, p := range s.priors.Params {
		params[i] = p.Mean
	}

	switch s.family {
	case schema.PolyFamily:
		if ls, ok := polyLeastSquares(x, y, s.priors.Order); ok {
			params = ls
		}
	case schema.ExpFamily:
		if start, ok := expStart(x, y); ok {
			params = start
		} else if !s.finiteMean(params, x) {
			params = expFallback(params, x, y)
		}
	case schema.LogisticFamily:
		shifted, expo := params[2], params[3]
		curve := func(v float64) float64 { return 1 / (1 + math.Exp(-expo*(v-shifted))) }
		if a, b, ok := basisFit(x, y, curve); ok {
			params[0], params[1] = a, b
		}
	}

	theta := append(params, residualScale(s, params, x, y))
	return theta
}

// finiteMean reports whether the mean function is finite on every x.
func (s *Spec) finiteMean(params, x []float64) bool {
	for _, xi := range x {
		m := s.mean(params, xi)
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return false
		}
	}
	return true
}

// residualScale is the RMS residual of params, floored at 1 and capped at
// the range of y.
func residualScale(s *Spec, params, x, y []float64) float64 {
	if len(x) == 0 {
		return s.priors.Sigma.Scale
	}
	ss := 0.0
	for i := range x {
		d := s.mean(params, x[i]) - y[i]
		ss += d * d
	}
	rms := math.Sqrt(ss / float64(len(x)))
	if math.IsNaN(rms) || math.IsInf(rms, 0) || rms < 1 {
		return math.Max(1, math.Min(s.priors.Sigma.Scale, 1e6))
	}
	return math.Min(rms, math.Max(1, floats.Max(y)-floats.Min(y)))
}

// leastSquares solves X b = y in the least squares sense.
func leastSquares(X *mat.Dense, y []float64) ([]float64, bool) {
	n, m := X.Dims()
	if n < m || n == 0 {
		return nil, false
	}
	Y := mat.NewDense(n, 1, append([]float64(nil), y...))

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, false
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return nil, false
	}
	var B mat.Dense
	svd.SolveTo(&B, Y, rank)

	coef := make([]float64, m)
	for j := range m {
		coef[j] = B.At(j, 0)
		if math.IsNaN(coef[j]) || math.IsInf(coef[j], 0) {
			return nil, false
		}
	}
	return coef, true
}

// polyLeastSquares solves the Vandermonde system in the least squares sense.
func polyLeastSquares(x, y []float64, order int) ([]float64, bool) {
	n, m := len(x), order+1
	if n < m || n == 0 {
		return nil, false
	}
	X := mat.NewDense(n, m, nil)
	for i, xi := range x {
		pw := 1.0
		for j := range m {
			X.Set(i, j, pw)
			pw *= xi
		}
	}
	return leastSquares(X, y)
}

// basisFit fits y = a + b*f(x).
func basisFit(x, y []float64, f func(float64) float64) (a, b float64, ok bool) {
	if len(x) < 2 {
		return 0, 0, false
	}
	X := mat.NewDense(len(x), 2, nil)
	for i, xi := range x {
		fx := f(xi)
		if math.IsNaN(fx) || math.IsInf(fx, 0) {
			return 0, 0, false
		}
		X.Set(i, 0, 1)
		X.Set(i, 1, fx)
	}
	coef, ok := leastSquares(X, y)
	if !ok {
		return 0, 0, false
	}
	return coef[0], coef[1], true
}

// expStart fits log(y - ymin + 1) linearly in x for a first exponent, then
// searches exponents around it, refitting intercept and slope for each.
func expStart(x, y []float64) ([]float64, bool) {
	if len(x) < 3 {
		return nil, false
	}
	shift := floats.Min(y) - 1
	ly := make([]float64, len(y))
	for i, v := range y {
		ly[i] = math.Log(v - shift)
	}
	line, ok := polyLeastSquares(x, ly, 1)
	if !ok {
		return nil, false
	}

	fitAt := func(expo float64) ([]float64, float64, bool) {
		a, b, ok := basisFit(x, y, func(v float64) float64 { return math.Exp(expo * v) })
		if !ok {
			return nil, math.Inf(1), false
		}
		p := []float64{a, b, expo}
		ss := 0.0
		for i := range x {
			d := ExpMean(p, x[i]) - y[i]
			ss += d * d
		}
		return p, ss, !math.IsNaN(ss) && !math.IsInf(ss, 0)
	}

	best, bestSS, found := fitAt(line[1])
	lo, hi := line[1]-math.Abs(line[1])/2-1e-3, line[1]+math.Abs(line[1])/2+1e-3
	const ratio = 0.6180339887498949
	for range 60 {
		m1 := hi - ratio*(hi-lo)
		m2 := lo + ratio*(hi-lo)
		p1, ss1, ok1 := fitAt(m1)
		p2, ss2, ok2 := fitAt(m2)
		if ok1 && ss1 < bestSS {
			best, bestSS, found = p1, ss1, true
		}
		if ok2 && ss2 < bestSS {
			best, bestSS, found = p2, ss2, true
		}
		if ss1 <= ss2 {
			hi = m2
		} else {
			lo = m1
		}
	}
	return best, found
}

// expFallback picks an exponent that carries the curve from the first to the
// last observation when the prior means overflow on the observed domain.
func expFallback(params, x, y []float64) []float64 {
	out := append([]float64(nil), params...)
	if len(x) == 0 {
		return out
	}
	xmax := x[len(x)-1]
	ymin, ymax := y[0], y[0]
	for _, v := range y {
		ymin = math.Min(ymin, v)
		ymax = math.Max(ymax, v)
	}
	out[0] = ymin
	out[1] = math.Max(1, out[1])
	if rise := ymax - ymin; rise > out[1] && xmax > 0 {
		out[2] = math.Log(rise/out[1]) / xmax
	} else {
		out[2] = 0
	}
	return out
}
