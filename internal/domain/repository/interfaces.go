package repository

import (
	"context"
	"time"

	"MarketMood/internal/domain/models"
)

// SnapshotSource supplies recent price/volume history per market.
type SnapshotSource interface {
	// Fetch returns the snapshot of one market. Unknown markets yield
	// models.ErrNotFound, transport problems models.ErrSourceUnavailable.
	Fetch(ctx context.Context, marketID string, daysBack int) (models.MarketSnapshot, error)
	Name() string
}

// BatchSource is implemented by sources that can fetch many markets at once.
type BatchSource interface {
	FetchMany(ctx context.Context, marketIDs []string, daysBack int) models.FetchResult
}

// StateWriter upserts analytics rows.
type StateWriter interface {
	UpsertState(ctx context.Context, s models.DailyState) error
	UpsertEdge(ctx context.Context, e models.CorrelationEdge, updatedAt time.Time) error
}

// StateReader serves the read side.
type StateReader interface {
	LatestDate(ctx context.Context) (time.Time, error)
	StatesOn(ctx context.Context, date time.Time) ([]models.DailyState, error)
	StatesBetween(ctx context.Context, marketID string, from, to time.Time) ([]models.DailyState, error)
	PreviousState(ctx context.Context, marketID string, before time.Time) (models.DailyState, error)
	Edges(ctx context.Context, minAbsWeight float64) ([]models.StoredEdge, error)
}

// PersistenceGateway is the full persistence surface used by the pipeline.
type PersistenceGateway interface {
	StateWriter
	StateReader
	// WithBatch runs fn inside a single transaction. Each write made through
	// the StateWriter handed to fn is isolated so that a failing item does not
	// abort its siblings.
	WithBatch(ctx context.Context, fn func(w StateWriter) error) error
	LatestSnapshot(ctx context.Context) (models.LatestSnapshot, error)
	DeleteStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Health(ctx context.Context) error
	Close() error
}

// RunNotifier is told about every completed pipeline run.
type RunNotifier interface {
	NotifyRun(ctx context.Context, r models.RunReport) error
}

// Metrics records pipeline telemetry.
type Metrics interface {
	RecordStage(stage string, status models.RunStatus, seconds float64)
	RecordRun(status models.RunStatus)
	RecordItemFailure(stage, kind string)
	RecordMood(marketID string, moodIndex float64)
	RecordJob(job string, err error)
}

// CacheInvalidator drops derived read-side caches after the data changed.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}
