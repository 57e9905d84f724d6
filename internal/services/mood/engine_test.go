package mood

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
)

func TestScoreDefaultWeights(t *testing.T) {
	e := NewEngine()
	res, err := e.Score(models.FeatureSet{
		ReturnNormalized:     0.4,
		VolatilityNormalized: -0.5,
		VolumeNormalized:     0.25,
	}, models.DefaultWeights())
	require.NoError(t, err)
	// 0.2 + 0.15 + 0.05
	assert.InDelta(t, 0.4, res.MoodIndex, 1e-9)
	assert.Equal(t, models.Bullish, res.MoodLevel)
	assert.Equal(t, 0.4, res.TrendStrength)
}

func TestScoreClamps(t *testing.T) {
	e := NewEngine()
	hi, err := e.Score(models.FeatureSet{ReturnNormalized: 50}, models.DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, 1.0, hi.MoodIndex)
	assert.Equal(t, models.VeryBullish, hi.MoodLevel)

	lo, err := e.Score(models.FeatureSet{VolatilityNormalized: 50}, models.DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, -1.0, lo.MoodIndex)
	assert.Equal(t, models.VeryBearish, lo.MoodLevel)
}

func TestScoreBoundedForArbitraryInputs(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		f := models.FeatureSet{
			ReturnNormalized:     (rng.Float64() - 0.5) * 1e6,
			VolatilityNormalized: (rng.Float64() - 0.5) * 1e3,
			VolumeNormalized:     (rng.Float64() - 0.5) * 10,
		}
		w := models.Weights{
			Return:     (rng.Float64() - 0.5) * 20,
			Volatility: (rng.Float64() - 0.5) * 20,
			Volume:     (rng.Float64() - 0.5) * 20,
		}
		res, err := e.Score(f, w)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.MoodIndex, -1.0)
		assert.LessOrEqual(t, res.MoodIndex, 1.0)
	}
}

func TestScoreInfinitiesClamp(t *testing.T) {
	res, err := NewEngine().Score(models.FeatureSet{ReturnNormalized: math.Inf(1)}, models.DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.MoodIndex)
}

func TestScoreRejectsNaN(t *testing.T) {
	_, err := NewEngine().Score(models.FeatureSet{ReturnNormalized: math.NaN()}, models.DefaultWeights())
	assert.ErrorIs(t, err, models.ErrComputationFailure)
}

func TestLevelBoundaries(t *testing.T) {
	cases := []struct {
		idx  float64
		want models.MoodLevel
	}{
		{-1, models.VeryBearish},
		{-0.5000001, models.VeryBearish},
		{-0.5, models.Bearish},
		{-0.1000001, models.Bearish},
		{-0.1, models.Neutral},
		{0, models.Neutral},
		{0.0999, models.Neutral},
		{0.1, models.Bullish},
		{0.4999, models.Bullish},
		{0.5, models.VeryBullish},
		{1, models.VeryBullish},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Level(tc.idx), "idx=%v", tc.idx)
	}
}

func TestTrendStrengthIsUnsigned(t *testing.T) {
	assert.Equal(t, 1.2346, TrendStrength(models.FeatureSet{ReturnNormalized: -1.23456}))
}
