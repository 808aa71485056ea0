package sampler_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/huangsam/coronacaster/core/algo"
	"github.com/huangsam/coronacaster/core/model"
	"github.com/huangsam/coronacaster/core/sampler"
	"github.com/huangsam/coronacaster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// constantData is 50 +/- 2 around a flat line.
func constantData(n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range n {
		x[i] = float64(i)
		y[i] = 50 + 2*math.Pow(-1, float64(i))
	}
	return x, y
}

func TestSample_RecoversConstant(t *testing.T) {
	spec, err := model.Poly(0, nil)
	require.NoError(t, err)
	x, y := constantData(60)

	trace, err := sampler.Sample(context.Background(), spec, x, y, sampler.Options{
		Draws:   400,
		Tune:    200,
		Chains:  3,
		Workers: 2,
		Seed:    7,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"intercept", "sigma"}, trace.Names)
	assert.Equal(t, 1200, trace.Len())
	for _, name := range trace.Names {
		assert.Len(t, trace.Draws[name], trace.Len(), name)
	}

	intercept, err := algo.Summarize("intercept", trace.Draws["intercept"])
	require.NoError(t, err)
	assert.InDelta(t, 50, intercept.Mean, 1)
	assert.Less(t, intercept.P20, intercept.P80)

	sigma := trace.Draws["sigma"]
	assert.Greater(t, floats.Min(sigma), 0.0)
	assert.InDelta(t, 2, floats.Sum(sigma)/float64(len(sigma)), 0.6)
}

func TestSample_SameSeedSameDraws(t *testing.T) {
	spec, err := model.Poly(1, nil)
	require.NoError(t, err)
	x, y := constantData(20)
	opts := sampler.Options{Draws: 50, Tune: 20, Chains: 4, Workers: 4, Seed: 11}

	a, err := sampler.Sample(context.Background(), spec, x, y, opts)
	require.NoError(t, err)
	b, err := sampler.Sample(context.Background(), spec, x, y, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Draws, b.Draws)

	opts.Seed = 12
	c, err := sampler.Sample(context.Background(), spec, x, y, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.Draws["a1"], c.Draws["a1"])
}

func TestSample_InvalidOptions(t *testing.T) {
	spec, err := model.Poly(0, nil)
	require.NoError(t, err)
	x, y := constantData(10)

	for _, opts := range []sampler.Options{
		{Draws: 0, Chains: 1},
		{Draws: 10, Chains: 0},
		{Draws: 10, Chains: 1, Tune: -1},
	} {
		_, err := sampler.Sample(context.Background(), spec, x, y, opts)
		assert.True(t, errors.Is(err, schema.ErrConfiguration), "%+v: %v", opts, err)
	}
}

func TestSample_Cancelled(t *testing.T) {
	spec, err := model.Poly(0, nil)
	require.NoError(t, err)
	x, y := constantData(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trace, err := sampler.Sample(ctx, spec, x, y, sampler.Options{Draws: 10, Chains: 2})
	assert.Nil(t, trace)
	assert.True(t, errors.Is(err, schema.ErrSampler))
	assert.True(t, errors.Is(err, context.Canceled))
}

// flatModel has no support anywhere.
type flatModel struct{}

func (flatModel) Names() []string                        { return []string{"mu"} }
func (flatModel) Dim() int                               { return 2 }
func (flatModel) Scales() []float64                      { return []float64{1, 1} }
func (flatModel) InitialPoint(_, _ []float64) []float64  { return []float64{0, 1} }
func (flatModel) LogPosterior(_, _, _ []float64) float64 { return math.Inf(-1) }

func TestSample_NoSupport(t *testing.T) {
	_, err := sampler.Sample(context.Background(), flatModel{}, []float64{0}, []float64{0}, sampler.Options{Draws: 5, Chains: 1})
	assert.True(t, errors.Is(err, schema.ErrSampler))
}

// offsetModel is a unit normal shifted by a log density offset so large
// that subtracting a slice height rounds back to the current density.
type offsetModel struct{}

func (offsetModel) Names() []string                       { return []string{"mu"} }
func (offsetModel) Dim() int                              { return 2 }
func (offsetModel) Scales() []float64                     { return []float64{1, 1} }
func (offsetModel) InitialPoint(_, _ []float64) []float64 { return []float64{0, 1} }
func (offsetModel) LogPosterior(theta, _, _ []float64) float64 {
	if !(theta[1] > 0) {
		return math.Inf(-1)
	}
	return -1e20 - 0.5*theta[0]*theta[0] - 0.5*(theta[1]-1)*(theta[1]-1)
}

func TestSample_HugeLogDensity(t *testing.T) {
	offset := -1e20
	require.Equal(t, offset, offset-1, "offset must swallow a unit slice height")

	trace, err := sampler.Sample(context.Background(), offsetModel{}, []float64{0}, []float64{0}, sampler.Options{
		Draws:  50,
		Tune:   10,
		Chains: 2,
		Seed:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, trace.Len())
	for _, v := range trace.Draws["sigma"] {
		assert.Greater(t, v, 0.0)
	}
}
