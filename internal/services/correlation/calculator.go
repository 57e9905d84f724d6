package correlation

import (
	"fmt"
	"math"
	"sort"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/services/features"
	"MarketMood/pkg/mathx"
)

// DefaultThreshold is the minimum |coefficient| for an edge to be kept.
const DefaultThreshold = 0.6

// Calculator builds a thresholded Pearson correlation graph over a batch.
type Calculator struct {
	threshold float64
}

// Option configures Calculator.
type Option func(*Calculator)

// WithThreshold overrides DefaultThreshold. Values outside (0, 1] are ignored.
func WithThreshold(t float64) Option {
	return func(c *Calculator) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the configured significance threshold.
func (c *Calculator) Threshold() float64 { return c.threshold }

// Build returns the canonical edges of the batch sorted by |weight|
// descending, ties broken by (source, target).
func (c *Calculator) Build(batch map[string]models.MarketSnapshot) ([]models.CorrelationEdge, error) {
	ids := make([]string, 0, len(batch))
	series := make(map[string][]float64, len(batch))
	for id, snap := range batch {
		if snap.MarketID != "" && snap.MarketID != id {
			return nil, fmt.Errorf("%w: snapshot %s filed under %s", models.ErrComputationFailure, snap.MarketID, id)
		}
		rets := features.PctReturns(snap.TrailingPrices)
		if len(rets) == 0 {
			continue
		}
		ids = append(ids, id)
		series[id] = rets
	}
	sort.Strings(ids)

	var edges []models.CorrelationEdge
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := alignTail(series[ids[i]], series[ids[j]])
			w := mathx.Round4(Pearson(a, b))
			if math.Abs(w) < c.threshold {
				continue
			}
			edges = append(edges, NewEdge(ids[i], ids[j], w))
		}
	}
	SortEdges(edges)
	return edges, nil
}

// NewEdge builds a canonical edge regardless of argument order.
func NewEdge(a, b string, w float64) models.CorrelationEdge {
	if b < a {
		a, b = b, a
	}
	sign := models.SignNegative
	if w > 0 {
		sign = models.SignPositive
	}
	return models.CorrelationEdge{SourceID: a, TargetID: b, Weight: w, Sign: sign}
}

// SortEdges orders edges by |weight| descending, then by canonical pair.
func SortEdges(edges []models.CorrelationEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		wi, wj := math.Abs(edges[i].Weight), math.Abs(edges[j].Weight)
		if wi != wj {
			return wi > wj
		}
		if edges[i].SourceID != edges[j].SourceID {
			return edges[i].SourceID < edges[j].SourceID
		}
		return edges[i].TargetID < edges[j].TargetID
	})
}

// Pearson returns the correlation coefficient of two equal-length series.
// Degenerate inputs (length mismatch, fewer than two points, zero variance)
// yield 0.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0
	}
	ma, _ := features.MeanStd(a)
	mb, _ := features.MeanStd(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da := a[i] - ma
		db := b[i] - mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	r := cov / math.Sqrt(va*vb)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return mathx.Clamp(r, -1, 1)
}

// alignTail truncates both series to their common trailing length.
func alignTail(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}
