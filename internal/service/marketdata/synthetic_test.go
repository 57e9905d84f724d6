package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
)

func fixedNow() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.IDs(), 15)
	m, ok := r.Lookup("JP_NIKKEI")
	require.True(t, ok)
	assert.Equal(t, "0050.KL", m.Symbol)
	assert.Equal(t, 32500.0, m.BasePrice)
	_, ok = r.Lookup("NOPE")
	assert.False(t, ok)
}

func TestSyntheticShape(t *testing.T) {
	s := NewSyntheticSource(NewRegistry(), 42, fixedNow)
	snap, err := s.Fetch(context.Background(), "US_SPX", 30)
	require.NoError(t, err)

	assert.Equal(t, "US_SPX", snap.MarketID)
	assert.Equal(t, models.SourceSynthetic, snap.Source)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), snap.AsOfDate)
	require.Len(t, snap.TrailingPrices, 30)
	assert.Equal(t, snap.TrailingPrices[29], snap.ClosePrice)
	assert.GreaterOrEqual(t, snap.Volume, 1e6)
	assert.LessOrEqual(t, snap.Volume, 1e7)
	assert.InDelta(t, snap.ClosePrice*1.01, snap.HighPrice, 0.01)

	prev := 4500.0
	for _, p := range snap.TrailingPrices {
		// rounding to cents can nudge a step just past 2%
		assert.InDelta(t, 0, (p-prev)/prev, 0.0201)
		prev = p
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	a := NewSyntheticSource(NewRegistry(), 7, fixedNow)
	b := NewSyntheticSource(NewRegistry(), 7, fixedNow)
	sa, err := a.Fetch(context.Background(), "EU_STOXX", 20)
	require.NoError(t, err)
	sb, err := b.Fetch(context.Background(), "EU_STOXX", 20)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)

	other, err := a.Fetch(context.Background(), "GB_FTSE", 20)
	require.NoError(t, err)
	assert.NotEqual(t, sa.TrailingPrices, other.TrailingPrices)
}

func TestSyntheticUnknownMarket(t *testing.T) {
	s := NewSyntheticSource(NewRegistry(), 1, fixedNow)
	_, err := s.Fetch(context.Background(), "MARS", 30)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
