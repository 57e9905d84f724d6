package usecase_test

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/repository"
	icache "MarketMood/internal/service/cache"
	"MarketMood/internal/service/marketdata"
	"MarketMood/internal/services/analytics"
	"MarketMood/internal/services/correlation"
	"MarketMood/internal/services/features"
	"MarketMood/internal/services/mood"
	"MarketMood/internal/usecase"
	"MarketMood/pkg/metrics"
	"MarketMood/pkg/sqldb"
)

var e2eNow = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)

// scriptedSource serves fixed price series and fails for ids it does not know.
type scriptedSource map[string][]float64

func (s scriptedSource) Name() string { return "scripted" }

func (s scriptedSource) Fetch(_ context.Context, id string, _ int) (models.MarketSnapshot, error) {
	prices, ok := s[id]
	if !ok {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %s", models.ErrSourceUnavailable, id)
	}
	last := prices[len(prices)-1]
	return models.MarketSnapshot{
		MarketID:       id,
		AsOfDate:       e2eNow,
		ClosePrice:     last,
		Volume:         1e6,
		TrailingPrices: prices,
		Source:         models.SourceSynthetic,
	}, nil
}

func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()

	a := []float64{100, 101, 99, 103, 104, 102, 106, 107}
	b := make([]float64, len(a))
	c := make([]float64, len(a))
	for i, p := range a {
		b[i] = p * 2
		c[i] = 300 - p
	}
	src := scriptedSource{"A": a, "B": b, "C": c}

	client, err := sqldb.NewClient(sqldb.WithDriver(sqldb.DriverSQLite), sqldb.WithDSN(filepath.Join(t.TempDir(), "e2e.db")))
	require.NoError(t, err)
	store := repository.NewSQLStateStore(client)
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() { _ = store.Close() })

	engine := analytics.NewEngine(features.NewCalculator(), mood.NewEngine(), correlation.NewCalculator(),
		analytics.WithClock(func() time.Time { return e2eNow }))
	rec := metrics.NewWithRegistry(prometheus.NewRegistry())
	snap := usecase.NewSnapshotService(store, icache.NewTTLCache(), time.Minute, nil)

	runner := usecase.NewPipelineRunner(
		marketdata.NewFetcher(src, marketdata.WithConcurrency(2)),
		engine, store, rec,
		[]string{"A", "B", "C", "D"}, 8,
		usecase.WithNotifiers(snap),
		usecase.WithRunnerClock(func() time.Time { return e2eNow }),
	)

	report, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, report.Status)
	require.Len(t, report.Fetch.Failed, 1)
	assert.Equal(t, "D", report.Fetch.Failed[0].ID)
	require.NotNil(t, report.Analyze)
	assert.Equal(t, 3, report.Analyze.MarketsAnalyzed)
	require.NotNil(t, report.Persist)
	assert.Equal(t, 3, report.Persist.MarketsSaved)
	assert.Equal(t, 0, report.Persist.MarketsFailed)

	latest, err := snap.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC), latest.Date)
	assert.Len(t, latest.States, 3)

	var ab *models.StoredEdge
	for i := range latest.Edges {
		e := latest.Edges[i]
		assert.Less(t, e.SourceID, e.TargetID)
		assert.GreaterOrEqual(t, math.Abs(e.Weight), 0.6)
		if e.SourceID == "A" && e.TargetID == "B" {
			ab = &e
		}
	}
	require.NotNil(t, ab)
	assert.Equal(t, models.SignPositive, ab.Sign)

	// replaying the same day overwrites instead of duplicating
	_, err = runner.Run(ctx)
	require.NoError(t, err)
	states, err := store.StatesOn(ctx, latest.Date)
	require.NoError(t, err)
	assert.Len(t, states, 3)

	retention := usecase.NewRetentionService(store, 90, nil, snap)
	cr, err := retention.Cleanup(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cr.RowsDeleted)

	_, err = snap.Latest(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)
	edges, err := store.Edges(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, edges, len(latest.Edges))
}
