package schema

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", WorldCountry},
		{"all", WorldCountry},
		{"World", WorldCountry},
		{"  Finland ", "Finland"},
		{"United_States_of_America", "United_States_of_America"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCountry(tt.in))
		})
	}
}

func TestResultTable_OrderAndReplace(t *testing.T) {
	table := NewResultTable()
	table.Set(KeyCorr, 0.9)
	table.Set(KeyMeanDiff, 2)
	table.Set(KeyCorr, 0.95)

	assert.Equal(t, []string{KeyCorr, KeyMeanDiff}, table.Keys())
	v, ok := table.Get(KeyCorr)
	require.True(t, ok)
	assert.Equal(t, 0.95, v)
	assert.False(t, table.Has(KeyPrediction))
}

func TestResultTable_MarshalJSON(t *testing.T) {
	table := NewResultTable()
	table.Set(KeyCorr, math.NaN())
	table.Set(KeyPrediction, 12.5)

	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.Equal(t, `{"corr":null,"prediction":12.5}`, string(data))
}

func TestValues_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Values{1, math.Inf(1), 3})
	require.NoError(t, err)
	assert.Equal(t, `[1,null,3]`, string(data))
}

func TestNewForecastResultRecord(t *testing.T) {
	now := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("success row", func(t *testing.T) {
		table := NewResultTable()
		table.Set(KeyCorr, 0.99)
		table.Set(KeyPrediction, 100)
		table.Set("a1_mean", 3)
		table.Set("a1_std", 0.5)

		rec := NewForecastResultRecord(7, ExperimentRow{Country: "Finland", Model: "poly1", Table: table}, now)
		assert.Equal(t, ForecastOK, rec.Status)
		require.NotNil(t, rec.Prediction)
		assert.Equal(t, 100.0, *rec.Prediction)
		assert.Nil(t, rec.PredictionCILow)
		require.NotNil(t, rec.Parameters)
		assert.JSONEq(t, `{"a1_mean":3,"a1_std":0.5}`, *rec.Parameters)
	})

	t.Run("failed row", func(t *testing.T) {
		rec := NewForecastResultRecord(7, ExperimentRow{Country: "Nowhere", Model: "exp", Stage: DataStage, Error: "no rows"}, now)
		assert.Equal(t, ForecastFailed, rec.Status)
		require.NotNil(t, rec.ErrorStage)
		assert.Equal(t, "data", *rec.ErrorStage)
		assert.Nil(t, rec.Corr)
	})
}

func TestStageError(t *testing.T) {
	err := WrapStage(SamplingStage, Samplerf("chain %d failed", 2))
	assert.True(t, errors.Is(err, ErrSampler))
	assert.Equal(t, SamplingStage, StageOf(err))
	assert.Contains(t, err.Error(), "sampling stage")

	// An already tagged error keeps its stage.
	again := WrapStage(EvaluationStage, err)
	assert.Equal(t, SamplingStage, StageOf(again))
	assert.Nil(t, WrapStage(DataStage, nil))
}

func TestParsePriorOverrides(t *testing.T) {
	got, err := ParsePriorOverrides("a1=0,10; intercept = 5,2 ;sigma=40")
	require.NoError(t, err)
	assert.Equal(t, PriorOverrides{
		"a1":        {0, 10},
		"intercept": {5, 2},
		"sigma":     {40},
	}, got)

	empty, err := ParsePriorOverrides("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParsePriorOverrides("a1")
	assert.True(t, errors.Is(err, ErrConfiguration))
	_, err = ParsePriorOverrides("a1=x,2")
	assert.True(t, errors.Is(err, ErrConfiguration))
}
