package features

import (
	"fmt"
	"math"

	"MarketMood/internal/domain/models"
	"MarketMood/pkg/mathx"
)

// Population holds the assumed mean and standard deviation used to z-score a
// raw feature.
type Population struct {
	Mean float64
	Std  float64
}

// Fixed population parameters. These stand in for cross-sectional statistics
// over the current batch.
// TODO: replace with batch statistics once stored history is deep enough to
// calibrate against.
var (
	ReturnPopulation     = Population{Mean: 0, Std: 2.0}
	VolatilityPopulation = Population{Mean: 2.0, Std: 1.0}
	VolumePopulation     = Population{Mean: 0, Std: 50.0}
)

// Calculator is a stateless FeatureExtractor.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Extract derives the feature set of one snapshot. It fails only when the
// inputs produce a non-finite feature.
func (c *Calculator) Extract(s models.MarketSnapshot) (models.FeatureSet, error) {
	fs := models.FeatureSet{
		ReturnToday:   ReturnToday(s.TrailingPrices),
		Volatility30d: Volatility(s.TrailingPrices),
		VolumeScore:   VolumeScore(s.Volume, s.TrailingPrices, s.TrailingVolumes),
	}
	fs.ReturnNormalized = ZScore(fs.ReturnToday, ReturnPopulation)
	fs.VolatilityNormalized = ZScore(fs.Volatility30d, VolatilityPopulation)
	fs.VolumeNormalized = ZScore(fs.VolumeScore, VolumePopulation)

	if !mathx.Finite(fs.ReturnToday, fs.Volatility30d, fs.VolumeScore,
		fs.ReturnNormalized, fs.VolatilityNormalized, fs.VolumeNormalized) {
		return models.FeatureSet{}, fmt.Errorf("%w: non-finite feature for %s", models.ErrComputationFailure, s.MarketID)
	}
	return fs, nil
}

// ReturnToday is the percentage change between the last two prices.
func ReturnToday(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	prev := prices[len(prices)-2]
	cur := prices[len(prices)-1]
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// PctReturns computes day-over-day percentage returns. Steps whose base price
// is not strictly positive, or where either price is not finite, are skipped.
// It returns nil if fewer than two prices are given.
func PctReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if prev <= 0 || !mathx.Finite(prev, cur) {
			continue
		}
		out = append(out, (cur-prev)/prev*100)
	}
	return out
}

// Volatility is the population standard deviation of percentage returns.
func Volatility(prices []float64) float64 {
	rets := PctReturns(prices)
	if len(rets) == 0 {
		return 0
	}
	_, std := MeanStd(rets)
	return std
}

// VolumeScore is the percentage deviation of the current volume from the mean
// of the earlier volumes. volumes ends with the current bar, which is left
// out of the baseline. Without earlier volumes it falls back to the
// deviation of the latest price from the mean trailing price; that proxy is
// an approximation and not a volume measurement.
func VolumeScore(current float64, prices, volumes []float64) float64 {
	if current == 0 {
		return 0
	}
	if len(volumes) > 1 {
		avg, _ := MeanStd(volumes[:len(volumes)-1])
		if avg == 0 {
			return 0
		}
		return (current - avg) / avg * 100
	}
	if len(prices) == 0 {
		return 0
	}
	avg, _ := MeanStd(prices)
	if avg == 0 {
		return 0
	}
	return (prices[len(prices)-1] - avg) / avg * 100
}

// ZScore normalizes x against a fixed population.
func ZScore(x float64, p Population) float64 {
	if p.Std == 0 {
		return 0
	}
	return (x - p.Mean) / p.Std
}

// MeanStd returns the mean and population standard deviation of xs.
func MeanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	n := float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / n
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}
