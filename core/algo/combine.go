package algo

import (
	"math"
	"slices"

	"github.com/huangsam/coronacaster/schema"
	"gonum.org/v1/gonum/stat"
)

// CombineHalfWidths merges per-parameter low-side and high-side deviations
// into one asymmetric interval half-width per side.
//
// Both lists are sorted ascending. When a side has fewer than two entries,
// or sigma exceeds the second-smallest low deviation, sigma is appended to
// both lists. The first (smallest) entry of each list is then dropped and
// the survivors are combined with a geometric mean. Zero deviations carry
// no spread and are left out of the mean; a side with nothing left falls
// back to sigma.
func CombineHalfWidths(low, high []float64, sigma float64) (lowHW, highHW float64, err error) {
	for _, v := range append(slices.Clone(low), high...) {
		if v < 0 || math.IsNaN(v) {
			return 0, 0, schema.Degeneracyf("deviation %v cannot enter a geometric mean", v)
		}
	}
	if sigma < 0 || math.IsNaN(sigma) {
		return 0, 0, schema.Degeneracyf("noise scale %v cannot enter a geometric mean", sigma)
	}

	lows := slices.Clone(low)
	highs := slices.Clone(high)
	slices.Sort(lows)
	slices.Sort(highs)

	if len(lows) < 2 || len(highs) < 2 || sigma > lows[1] {
		lows = append(lows, sigma)
		highs = append(highs, sigma)
	}

	return positiveGeoMean(lows[1:], sigma), positiveGeoMean(highs[1:], sigma), nil
}

// positiveGeoMean returns the geometric mean of the strictly positive values,
// or fallback when there are none.
func positiveGeoMean(xs []float64, fallback float64) float64 {
	pos := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x > 0 {
			pos = append(pos, x)
		}
	}
	if len(pos) == 0 {
		return fallback
	}
	return stat.GeometricMean(pos, nil)
}
