package mathx

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 { return Round(v, 4) }

// Round2 rounds to two decimal places.
func Round2(v float64) float64 { return Round(v, 2) }

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
