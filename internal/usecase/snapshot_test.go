package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
	icache "MarketMood/internal/service/cache"
)

type countingReader struct {
	*memStore
	calls int
}

func (c *countingReader) LatestSnapshot(ctx context.Context) (models.LatestSnapshot, error) {
	c.calls++
	return c.memStore.LatestSnapshot(ctx)
}

func TestSnapshotServiceCachesUntilRunPersists(t *testing.T) {
	ctx := context.Background()
	reader := &countingReader{memStore: seedHistory(t)}
	svc := NewSnapshotService(reader, icache.NewTTLCache(), time.Minute, nil)

	first, err := svc.Latest(ctx)
	require.NoError(t, err)
	second, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.calls)
	assert.Len(t, second.States, len(first.States))
	assert.True(t, first.Date.Equal(second.Date))

	require.NoError(t, svc.NotifyRun(ctx, models.RunReport{Status: models.StatusFailed}))
	_, _ = svc.Latest(ctx)
	assert.Equal(t, 1, reader.calls)

	require.NoError(t, svc.NotifyRun(ctx, models.RunReport{Persist: &models.PersistenceReport{MarketsSaved: 1}}))
	_, _ = svc.Latest(ctx)
	assert.Equal(t, 2, reader.calls)
}

func TestSnapshotServiceWithoutCache(t *testing.T) {
	reader := &countingReader{memStore: newMemStore()}
	svc := NewSnapshotService(reader, nil, 0, nil)
	_, err := svc.Latest(context.Background())
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, svc.Invalidate(context.Background()))
}
