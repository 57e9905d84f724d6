package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketMood/internal/domain/models"
	icache "MarketMood/internal/service/cache"
	"MarketMood/internal/service/metrics"
	applogger "MarketMood/pkg/logger"
)

const latestSnapshotKey = "snapshot:latest"

// SnapshotReader loads the newest persisted state.
type SnapshotReader interface {
	LatestSnapshot(ctx context.Context) (models.LatestSnapshot, error)
}

// SnapshotService serves the latest snapshot through a byte cache. It is also
// a RunNotifier and CacheInvalidator so writers can drop the cached copy.
type SnapshotService struct {
	reader SnapshotReader
	cache  icache.BytesCache
	ttl    time.Duration
	l      *applogger.Logger
}

// NewSnapshotService builds the service. A nil cache disables caching.
func NewSnapshotService(reader SnapshotReader, cache icache.BytesCache, ttl time.Duration, l *applogger.Logger) *SnapshotService {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotService{reader: reader, cache: cache, ttl: ttl, l: l}
}

// Latest returns the newest date's states and all edges.
func (s *SnapshotService) Latest(ctx context.Context) (models.LatestSnapshot, error) {
	if s.cache != nil {
		b, ok, err := s.cache.GetBytes(ctx, latestSnapshotKey)
		switch {
		case err != nil:
			s.l.Warn("snapshot cache_get_error", applogger.Error(err))
		case ok:
			var snap models.LatestSnapshot
			if err := json.Unmarshal(b, &snap); err == nil {
				metrics.SnapshotCache.WithLabelValues("hit").Inc()
				s.l.Debug("snapshot cache_hit", applogger.String("key", latestSnapshotKey))
				return snap, nil
			}
			s.l.Warn("snapshot cache_decode_error", applogger.String("key", latestSnapshotKey))
		}
	}

	if s.cache != nil {
		metrics.SnapshotCache.WithLabelValues("miss").Inc()
	}
	snap, err := s.reader.LatestSnapshot(ctx)
	if err != nil {
		return models.LatestSnapshot{}, err
	}
	if s.cache != nil {
		b, err := json.Marshal(snap)
		if err == nil {
			err = s.cache.SetBytes(ctx, latestSnapshotKey, b, s.ttl)
		}
		if err != nil {
			s.l.Warn("snapshot cache_set_error", applogger.Error(err))
		}
	}
	return snap, nil
}

func (s *SnapshotService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, latestSnapshotKey)
}

// NotifyRun drops the cached snapshot once a run has written anything.
func (s *SnapshotService) NotifyRun(ctx context.Context, r models.RunReport) error {
	if r.Persist == nil || r.Persist.MarketsSaved+r.Persist.CorrelationsSaved == 0 {
		return nil
	}
	return s.Invalidate(ctx)
}
