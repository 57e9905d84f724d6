package mood

import (
	"fmt"
	"math"

	"MarketMood/internal/domain/models"
	"MarketMood/pkg/mathx"
)

// Engine scores feature sets with a linear factor model.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Score combines normalized features with w into a mood in [-1, 1].
func (e *Engine) Score(f models.FeatureSet, w models.Weights) (models.MoodResult, error) {
	raw := w.Return*f.ReturnNormalized +
		w.Volatility*f.VolatilityNormalized +
		w.Volume*f.VolumeNormalized
	if math.IsNaN(raw) {
		return models.MoodResult{}, fmt.Errorf("%w: mood index is NaN", models.ErrComputationFailure)
	}
	idx := mathx.Round4(mathx.Clamp(raw, -1, 1))
	return models.MoodResult{
		MoodIndex:     idx,
		MoodLevel:     Level(idx),
		TrendStrength: TrendStrength(f),
	}, nil
}

// Level maps a mood index to its label. Buckets are closed on the left.
func Level(idx float64) models.MoodLevel {
	switch {
	case idx < -0.5:
		return models.VeryBearish
	case idx < -0.1:
		return models.Bearish
	case idx < 0.1:
		return models.Neutral
	case idx < 0.5:
		return models.Bullish
	default:
		return models.VeryBullish
	}
}

// TrendStrength is the unsigned magnitude of the normalized return.
func TrendStrength(f models.FeatureSet) float64 {
	return mathx.Round4(math.Abs(f.ReturnNormalized))
}
