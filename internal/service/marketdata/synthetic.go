package marketdata

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"MarketMood/internal/domain/models"
	"MarketMood/pkg/mathx"
	"MarketMood/pkg/util"
)

// SyntheticSource produces a seeded random walk around each market's base
// price. For a fixed seed the output depends only on market and day.
type SyntheticSource struct {
	registry *Registry
	seed     int64
	now      func() time.Time
}

func NewSyntheticSource(reg *Registry, seed int64, now func() time.Time) *SyntheticSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if now == nil {
		now = time.Now
	}
	return &SyntheticSource{registry: reg, seed: seed, now: now}
}

func (s *SyntheticSource) Name() string { return string(models.SourceSynthetic) }

func (s *SyntheticSource) Fetch(_ context.Context, marketID string, daysBack int) (models.MarketSnapshot, error) {
	m, ok := s.registry.Lookup(marketID)
	if !ok {
		return models.MarketSnapshot{}, fmt.Errorf("%w: market %s", models.ErrNotFound, marketID)
	}
	if daysBack < 1 {
		daysBack = 1
	}
	day := util.StartOfDayUTC(s.now())
	rng := rand.New(rand.NewSource(s.seedFor(marketID, day)))

	prices := make([]float64, 0, daysBack)
	p := m.BasePrice
	for i := 0; i < daysBack; i++ {
		p *= 1 + (rng.Float64()*0.04 - 0.02)
		prices = append(prices, mathx.Round2(p))
	}
	last := prices[len(prices)-1]
	prev := last
	if len(prices) > 1 {
		prev = prices[len(prices)-2]
	}

	return models.MarketSnapshot{
		MarketID:       marketID,
		AsOfDate:       day,
		ClosePrice:     last,
		OpenPrice:      mathx.Round2(last * 0.995),
		HighPrice:      mathx.Round2(last * 1.01),
		LowPrice:       mathx.Round2(last * 0.99),
		Volume:         float64(1_000_000 + rng.Intn(9_000_001)),
		ChangePct:      mathx.Round2((last - prev) / prev * 100),
		TrailingPrices: prices,
		Source:         models.SourceSynthetic,
	}, nil
}

func (s *SyntheticSource) seedFor(marketID string, day time.Time) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(marketID))
	return s.seed ^ int64(h.Sum64()) ^ day.Unix()
}
