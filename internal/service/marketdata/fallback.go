package marketdata

import (
	"context"
	"errors"
	"fmt"

	"MarketMood/internal/domain/models"
	domrepo "MarketMood/internal/domain/repository"
	applogger "MarketMood/pkg/logger"
)

// FallbackSource asks Primary first and Secondary when Primary is unavailable
// or returns no prices. Snapshots keep the provenance of whichever source
// produced them. Unknown markets are never retried.
type FallbackSource struct {
	primary   domrepo.SnapshotSource
	secondary domrepo.SnapshotSource
	l         *applogger.Logger
}

func NewFallbackSource(primary, secondary domrepo.SnapshotSource, l *applogger.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary, l: l}
}

func (s *FallbackSource) Name() string {
	return s.primary.Name() + "+" + s.secondary.Name()
}

func (s *FallbackSource) Fetch(ctx context.Context, marketID string, daysBack int) (models.MarketSnapshot, error) {
	snap, err := s.primary.Fetch(ctx, marketID, daysBack)
	if err == nil && !snap.Empty() {
		return snap, nil
	}
	if errors.Is(err, models.ErrNotFound) {
		return models.MarketSnapshot{}, err
	}
	if s.l != nil {
		fields := []applogger.Field{
			applogger.String("market_id", marketID),
			applogger.String("primary", s.primary.Name()),
			applogger.String("secondary", s.secondary.Name()),
		}
		if err != nil {
			fields = append(fields, applogger.Error(err))
		}
		s.l.Warn("primary source unavailable, using secondary", fields...)
	}
	// the per-market deadline may already be spent on the primary
	snap2, err2 := s.secondary.Fetch(context.WithoutCancel(ctx), marketID, daysBack)
	if err2 != nil {
		return models.MarketSnapshot{}, fmt.Errorf("secondary %s: %w", s.secondary.Name(), err2)
	}
	return snap2, nil
}
