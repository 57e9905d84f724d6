package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
)

func TestReturnToday(t *testing.T) {
	assert.InDelta(t, 10.0, ReturnToday([]float64{90, 100, 110}), 1e-9)
	assert.Equal(t, 0.0, ReturnToday([]float64{100}))
	assert.Equal(t, 0.0, ReturnToday(nil))
	assert.Equal(t, 0.0, ReturnToday([]float64{0, 5}))
}

func TestVolatilityIsPopulationStd(t *testing.T) {
	// returns: +10%, -10%
	v := Volatility([]float64{100, 110, 99})
	assert.InDelta(t, 10.0, v, 1e-9)

	assert.Equal(t, 0.0, Volatility([]float64{100}))
	assert.Equal(t, 0.0, Volatility(nil))
	assert.Equal(t, 0.0, Volatility([]float64{100, 100, 100}))
}

func TestVolatilityNonNegative(t *testing.T) {
	series := [][]float64{
		{1, 2},
		{5, 4, 3, 2, 1},
		{100, 101.5, 99.2, 104, 80, 120},
	}
	for _, s := range series {
		assert.GreaterOrEqual(t, Volatility(s), 0.0)
	}
}

func TestPctReturnsSkipsBadBase(t *testing.T) {
	r := PctReturns([]float64{0, 10, 11, math.NaN(), 12, 13.2})
	require.Len(t, r, 2)
	assert.InDelta(t, 10.0, r[0], 1e-9)
	assert.InDelta(t, 10.0, r[1], 1e-9)
}

func TestVolumeScore(t *testing.T) {
	t.Run("zero volume", func(t *testing.T) {
		assert.Equal(t, 0.0, VolumeScore(0, []float64{1, 2}, []float64{5}))
	})
	t.Run("volume history", func(t *testing.T) {
		assert.InDelta(t, 50.0, VolumeScore(150, nil, []float64{100, 100, 150}), 1e-9)
	})
	t.Run("current bar excluded from baseline", func(t *testing.T) {
		// baseline is mean(100, 200) = 150, not mean(100, 200, 300) = 200
		assert.InDelta(t, 100.0, VolumeScore(300, nil, []float64{100, 200, 300}), 1e-9)
	})
	t.Run("only current volume uses price proxy", func(t *testing.T) {
		assert.InDelta(t, 10.0, VolumeScore(300, []float64{90, 100, 110}, []float64{300}), 1e-9)
	})
	t.Run("price proxy", func(t *testing.T) {
		// mean 100, latest 110
		assert.InDelta(t, 10.0, VolumeScore(1e6, []float64{90, 100, 110}, nil), 1e-9)
	})
	t.Run("no prices", func(t *testing.T) {
		assert.Equal(t, 0.0, VolumeScore(1e6, nil, nil))
	})
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 1.0, ZScore(2, ReturnPopulation))
	assert.Equal(t, -2.0, ZScore(0, VolatilityPopulation))
	assert.Equal(t, 0.0, ZScore(5, Population{Mean: 1, Std: 0}))
}

func TestExtract(t *testing.T) {
	c := NewCalculator()
	fs, err := c.Extract(models.MarketSnapshot{
		MarketID:       "US_SPX",
		Volume:         1e6,
		TrailingPrices: []float64{100, 110, 99},
	})
	require.NoError(t, err)
	assert.InDelta(t, -10.0, fs.ReturnToday, 1e-9)
	assert.InDelta(t, 10.0, fs.Volatility30d, 1e-9)
	assert.InDelta(t, -5.0, fs.ReturnNormalized, 1e-9)
	assert.InDelta(t, 8.0, fs.VolatilityNormalized, 1e-9)
	assert.InDelta(t, fs.VolumeScore/50, fs.VolumeNormalized, 1e-9)
}

func TestExtractRejectsNonFinite(t *testing.T) {
	c := NewCalculator()
	_, err := c.Extract(models.MarketSnapshot{
		MarketID:       "X",
		Volume:         1,
		TrailingPrices: []float64{1, math.Inf(1)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrComputationFailure)
}
