package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketMood/internal/domain/models"
	drepo "MarketMood/internal/domain/repository"
	applogger "MarketMood/pkg/logger"
	"MarketMood/pkg/util"
)

// RetentionService deletes market states older than a horizon. Correlation
// edges are kept regardless of age.
type RetentionService struct {
	store        drepo.PersistenceGateway
	defaultDays  int
	invalidators []drepo.CacheInvalidator
	now          func() time.Time
	l            *applogger.Logger
}

func NewRetentionService(store drepo.PersistenceGateway, defaultDays int, l *applogger.Logger, invalidators ...drepo.CacheInvalidator) *RetentionService {
	if l == nil {
		l = applogger.Nop()
	}
	return &RetentionService{store: store, defaultDays: defaultDays, invalidators: invalidators, now: time.Now, l: l}
}

// DefaultDays is the configured horizon.
func (s *RetentionService) DefaultDays() int { return s.defaultDays }

// Cleanup deletes states dated before today minus daysToKeep. Zero or less
// removes every state row.
func (s *RetentionService) Cleanup(ctx context.Context, daysToKeep int) (models.CleanupReport, error) {
	cutoff := util.RetentionCutoff(s.now(), daysToKeep)
	n, err := s.store.DeleteStatesBefore(ctx, cutoff)
	if err != nil {
		s.l.Error("retention cleanup failed",
			applogger.Int("days_to_keep", daysToKeep),
			applogger.String("cutoff", util.FormatDate(cutoff)),
			applogger.Error(err),
		)
		return models.CleanupReport{}, fmt.Errorf("cleanup: %w", err)
	}
	for _, inv := range s.invalidators {
		if err := inv.Invalidate(ctx); err != nil {
			s.l.Warn("cache invalidation failed", applogger.Error(err))
		}
	}
	s.l.Info("retention cleanup done",
		applogger.Int("days_to_keep", daysToKeep),
		applogger.String("cutoff", util.FormatDate(cutoff)),
		applogger.Int64("rows_deleted", n),
	)
	return models.CleanupReport{DaysToKeep: daysToKeep, Cutoff: cutoff, RowsDeleted: n}, nil
}

// CleanupDefault runs Cleanup with the configured horizon.
func (s *RetentionService) CleanupDefault(ctx context.Context) (models.CleanupReport, error) {
	return s.Cleanup(ctx, s.defaultDays)
}
