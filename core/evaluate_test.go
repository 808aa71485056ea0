package core

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/coronacaster/core/model"
	"github.com/huangsam/coronacaster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearInput builds y = 1 + 2x on ten days with a perfectly fitting posterior.
func linearInput(target *int) EvalInput {
	x := make([]float64, 10)
	y := make([]float64, 10)
	dates := make([]time.Time, 10)
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range x {
		x[i] = float64(i)
		y[i] = 1 + 2*x[i]
		dates[i] = start.AddDate(0, 0, i)
	}
	return EvalInput{
		X:         x,
		Y:         y,
		Dates:     dates,
		ModelFunc: model.PolyMean,
		Params: []schema.ParameterSummary{
			{Name: "intercept", Mean: 1, P20: 0.5, P80: 1.5},
			{Name: "a1", Mean: 2, P20: 1.8, P80: 2.2},
		},
		Names:  []string{"intercept", "a1"},
		Sigma:  1,
		Target: target,
		Title:  "Testland",
	}
}

func intPtr(v int) *int { return &v }

func TestEvaluateFit_Diagnostics(t *testing.T) {
	out, err := EvaluateFit(linearInput(nil))
	require.NoError(t, err)

	assert.Equal(t, schema.DiagnosticKeys, out.Table.Keys())
	corr, _ := out.Table.Get(schema.KeyCorr)
	assert.InDelta(t, 1.0, corr, 1e-12)
	for _, key := range []string{schema.KeyMeanDiff, schema.KeyNormOfDiff, schema.KeyMaxPosDiff, schema.KeyMaxNegDiff} {
		v, ok := out.Table.Get(key)
		assert.True(t, ok, key)
		assert.InDelta(t, 0.0, v, 1e-12, key)
	}
	assert.Empty(t, out.Warnings)
	assert.Nil(t, out.Plot.Target)
	assert.Equal(t, schema.LinScale, out.Plot.Scale)
	assert.Len(t, out.Plot.Fit, 10)
	assert.Len(t, out.Plot.Bands, 2)
}

func TestEvaluateFit_DiffSigns(t *testing.T) {
	in := linearInput(nil)
	in.Y = append([]float64(nil), in.Y...)
	in.Y[3] += 4 // model under-predicts here
	in.Y[6] -= 3 // and over-predicts here

	out, err := EvaluateFit(in)
	require.NoError(t, err)

	maxPos, _ := out.Table.Get(schema.KeyMaxPosDiff)
	maxNeg, _ := out.Table.Get(schema.KeyMaxNegDiff)
	meanDiff, _ := out.Table.Get(schema.KeyMeanDiff)
	norm, _ := out.Table.Get(schema.KeyNormOfDiff)
	assert.InDelta(t, 3.0, maxPos, 1e-12)
	assert.InDelta(t, -4.0, maxNeg, 1e-12)
	assert.InDelta(t, 0.7, meanDiff, 1e-12)
	assert.InDelta(t, 5.0, norm, 1e-12)
}

func TestEvaluateFit_Forecast(t *testing.T) {
	out, err := EvaluateFit(linearInput(intPtr(20)))
	require.NoError(t, err)

	pred, ok := out.Table.Get(schema.KeyPrediction)
	require.True(t, ok)
	assert.InDelta(t, 41.0, pred, 1e-9)
	assert.False(t, out.Table.Has(schema.KeyTargetFit))

	// Deviations are 0.5 and 4 on both sides; the smaller is dropped.
	low, ok := out.Table.Get(schema.KeyPredictionCILow)
	require.True(t, ok)
	high, ok := out.Table.Get(schema.KeyPredictionCIHigh)
	require.True(t, ok)
	assert.InDelta(t, 37.0, low, 1e-9)
	assert.InDelta(t, 45.0, high, 1e-9)
	assert.Less(t, low, pred)
	assert.Greater(t, high, pred)

	require.NotNil(t, out.Plot.Target)
	assert.Equal(t, time.Date(2020, 3, 21, 0, 0, 0, 0, time.UTC), out.Plot.Target.Date)
	assert.InDelta(t, 4.0, out.Plot.Target.ErrLow, 1e-9)
	assert.Len(t, out.Plot.Fit, 21, "domain extends to the target")
	assert.Len(t, out.Plot.FitDates, 21)
	assert.Len(t, out.Plot.Observed, 10)

	band := out.Plot.Bands[1]
	assert.Equal(t, "a1", band.Name)
	assert.InDelta(t, 37.0, band.Lower[20], 1e-9)
	assert.InDelta(t, 45.0, band.Upper[20], 1e-9)
	assert.InDelta(t, 40.0, out.Plot.SigmaLower[20], 1e-9)
	assert.InDelta(t, 42.0, out.Plot.SigmaUpper[20], 1e-9)
}

func TestEvaluateFit_SigmaWidensNarrowBands(t *testing.T) {
	in := linearInput(intPtr(20))
	in.Sigma = 10

	out, err := EvaluateFit(in)
	require.NoError(t, err)

	// sigma exceeds the second-smallest deviation, so it joins both sides.
	low, _ := out.Table.Get(schema.KeyPredictionCILow)
	high, _ := out.Table.Get(schema.KeyPredictionCIHigh)
	hw := math.Sqrt(4 * 10)
	assert.InDelta(t, 41-hw, low, 1e-9)
	assert.InDelta(t, 41+hw, high, 1e-9)
}

func TestEvaluateFit_TargetInsideData(t *testing.T) {
	out, err := EvaluateFit(linearInput(intPtr(5)))
	require.NoError(t, err)

	fit, ok := out.Table.Get(schema.KeyTargetFit)
	require.True(t, ok)
	assert.InDelta(t, 11.0, fit, 1e-9)
	assert.False(t, out.Table.Has(schema.KeyPrediction))
	assert.False(t, out.Table.Has(schema.KeyPredictionCILow))
	assert.False(t, out.Table.Has(schema.KeyPredictionCIHigh))
	assert.Len(t, out.Plot.Fit, 10)
	require.NotNil(t, out.Plot.Target)
	assert.Zero(t, out.Plot.Target.ErrLow)
}

func TestEvaluateFit_OriginBeforeFirstObservation(t *testing.T) {
	origin := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	late := func(target int) EvalInput {
		in := linearInput(intPtr(target))
		in.X, in.Y, in.Dates = in.X[5:], in.Y[5:], in.Dates[5:]
		in.Origin = origin
		return in
	}

	t.Run("target inside the data", func(t *testing.T) {
		out, err := EvaluateFit(late(8))
		require.NoError(t, err)
		assert.True(t, out.Table.Has(schema.KeyTargetFit))
		assert.False(t, out.Table.Has(schema.KeyPrediction))
		assert.False(t, out.Table.Has(schema.KeyPredictionCILow))
		require.NotNil(t, out.Plot.Target)
		assert.Equal(t, origin.AddDate(0, 0, 8), out.Plot.Target.Date)
		assert.Len(t, out.Plot.Fit, 5)
	})

	t.Run("target past the data", func(t *testing.T) {
		out, err := EvaluateFit(late(12))
		require.NoError(t, err)
		pred, ok := out.Table.Get(schema.KeyPrediction)
		require.True(t, ok)
		assert.InDelta(t, 25, pred, 1e-12)
		require.Len(t, out.Plot.FitDates, 13)
		assert.Equal(t, origin, out.Plot.FitDates[0])
		assert.Equal(t, origin.AddDate(0, 0, 12), out.Plot.FitDates[12])
		assert.Equal(t, origin.AddDate(0, 0, 12), out.Plot.Target.Date)
	})
}

func TestEvaluateFit_Combined(t *testing.T) {
	in := linearInput(intPtr(20))
	in.Names = nil

	out, err := EvaluateFit(in)
	require.NoError(t, err)

	require.Len(t, out.Plot.Bands, 1)
	assert.Equal(t, "combined", out.Plot.Bands[0].Name)
	assert.True(t, out.Table.Has(schema.KeyPrediction))
	assert.False(t, out.Table.Has(schema.KeyPredictionCILow))
	require.NotNil(t, out.Plot.Target)
	assert.InDelta(t, 4.5, out.Plot.Target.ErrLow, 1e-9)
	assert.InDelta(t, 4.5, out.Plot.Target.ErrHigh, 1e-9)
}

func TestEvaluateFit_Degenerate(t *testing.T) {
	t.Run("zero variance correlation", func(t *testing.T) {
		in := linearInput(nil)
		in.Y = []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
		in.Params = []schema.ParameterSummary{{Name: "intercept", Mean: 5, P20: 4, P80: 6}}
		in.Names = []string{"intercept"}

		out, err := EvaluateFit(in)
		require.NoError(t, err)
		corr, ok := out.Table.Get(schema.KeyCorr)
		require.True(t, ok)
		assert.True(t, math.IsNaN(corr))
		require.Len(t, out.Warnings, 1)
		assert.True(t, strings.HasPrefix(out.Warnings[0], schema.ErrNumericDegeneracy.Error()))
	})

	t.Run("mean outside its percentiles", func(t *testing.T) {
		in := linearInput(intPtr(20))
		in.Params[0] = schema.ParameterSummary{Name: "intercept", Mean: 1, P20: 2, P80: 3}

		out, err := EvaluateFit(in)
		require.NoError(t, err)
		require.NotEmpty(t, out.Warnings)
		assert.Contains(t, out.Warnings[0], "intercept: low deviation")
		low, _ := out.Table.Get(schema.KeyPredictionCILow)
		assert.LessOrEqual(t, low, 41.0)
	})
}

func TestEvaluateFit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EvalInput)
		want   error
	}{
		{"nil model", func(in *EvalInput) { in.ModelFunc = nil }, schema.ErrConfiguration},
		{"empty", func(in *EvalInput) { in.X, in.Y, in.Dates = nil, nil, nil }, schema.ErrData},
		{"length mismatch", func(in *EvalInput) { in.Y = in.Y[:5] }, schema.ErrData},
		{"nan sigma", func(in *EvalInput) { in.Sigma = math.NaN() }, schema.ErrNumericDegeneracy},
		{"negative sigma", func(in *EvalInput) { in.Sigma = -1 }, schema.ErrNumericDegeneracy},
		{"unknown band", func(in *EvalInput) { in.Names = []string{"a7"} }, schema.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := linearInput(intPtr(20))
			tt.mutate(&in)
			_, err := EvaluateFit(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}
