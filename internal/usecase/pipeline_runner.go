package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MarketMood/internal/domain/models"
	drepo "MarketMood/internal/domain/repository"
	domsvc "MarketMood/internal/domain/service"
	applogger "MarketMood/pkg/logger"
)

// PipelineRunner executes one fetch, analyze, persist cycle over the
// configured markets. Runs are not serialized against each other.
type PipelineRunner struct {
	source    drepo.BatchSource
	analyzer  domsvc.BatchAnalyzer
	store     drepo.PersistenceGateway
	metrics   drepo.Metrics
	notifiers []drepo.RunNotifier
	marketIDs []string
	daysBack  int
	now       func() time.Time
	l         *applogger.Logger
}

// RunnerOption configures PipelineRunner.
type RunnerOption func(*PipelineRunner)

// WithNotifiers registers run listeners.
func WithNotifiers(n ...drepo.RunNotifier) RunnerOption {
	return func(r *PipelineRunner) { r.notifiers = append(r.notifiers, n...) }
}

// WithRunnerClock overrides the wall clock used for timestamps.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *PipelineRunner) { r.now = now }
}

// WithRunnerLogger injects a structured logger.
func WithRunnerLogger(l *applogger.Logger) RunnerOption {
	return func(r *PipelineRunner) { r.l = l }
}

// NewPipelineRunner creates a runner for marketIDs with daysBack of history.
func NewPipelineRunner(
	source drepo.BatchSource,
	analyzer domsvc.BatchAnalyzer,
	store drepo.PersistenceGateway,
	metrics drepo.Metrics,
	marketIDs []string,
	daysBack int,
	opts ...RunnerOption,
) *PipelineRunner {
	r := &PipelineRunner{
		source:    source,
		analyzer:  analyzer,
		store:     store,
		metrics:   metrics,
		marketIDs: marketIDs,
		daysBack:  daysBack,
		now:       time.Now,
		l:         applogger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline once. The returned report is always populated;
// the error is non-nil only when the run failed as a whole.
func (r *PipelineRunner) Run(ctx context.Context) (models.RunReport, error) {
	report := models.RunReport{RunID: uuid.NewString(), StartedAt: r.now().UTC()}
	l := r.l.With(applogger.String("run_id", report.RunID))
	l.Info("pipeline run started", applogger.Int("markets", len(r.marketIDs)))

	fetched := r.fetch(ctx, l, &report)
	var runErr error
	if len(fetched.Snapshots) == 0 {
		runErr = fmt.Errorf("%w: 0 of %d markets fetched", models.ErrNoDataAvailable, len(r.marketIDs))
		report.Status = models.StatusFailed
		return r.finish(ctx, l, report, runErr)
	}

	batch := r.analyze(l, &report, fetched.Snapshots)
	report.AsOfDate = batch.AsOfDate

	persist := r.persist(ctx, l, batch)
	report.Persist = &persist
	report.Moods = savedAnalytics(batch, persist.SavedMarkets)

	switch {
	case persist.MarketsSaved+persist.CorrelationsSaved == 0:
		report.Status = models.StatusFailed
		runErr = fmt.Errorf("%w: nothing persisted", models.ErrPersistenceFailure)
	case len(report.Fetch.Failed) > 0 || len(report.Analyze.MarketsFailed) > 0 ||
		report.Analyze.GraphError != "" || persist.Status != models.StatusSuccess:
		report.Status = models.StatusPartial
	default:
		report.Status = models.StatusSuccess
	}
	return r.finish(ctx, l, report, runErr)
}

func (r *PipelineRunner) fetch(ctx context.Context, l *applogger.Logger, report *models.RunReport) models.FetchResult {
	start := time.Now()
	res := r.source.FetchMany(ctx, r.marketIDs, r.daysBack)

	fr := models.FetchStageReport{
		Requested: len(r.marketIDs),
		Succeeded: res.Succeeded,
		Duration:  time.Since(start),
	}
	for _, f := range res.Failed {
		fr.Failed = append(fr.Failed, models.ItemFailure{ID: f.MarketID, Reason: f.Err.Error()})
		r.metrics.RecordItemFailure("fetch", errorKind(f.Err))
		l.Warn("market fetch failed", applogger.String("market_id", f.MarketID), applogger.Error(f.Err))
	}
	fr.Status = stageStatus(len(res.Snapshots), len(fr.Failed))
	report.Fetch = fr

	r.metrics.RecordStage("fetch", fr.Status, fr.Duration.Seconds())
	l.Info("fetch stage done",
		applogger.String("status", string(fr.Status)),
		applogger.Int("succeeded", len(res.Snapshots)),
		applogger.Int("failed", len(fr.Failed)),
		applogger.Duration("duration_ms", fr.Duration),
	)
	return res
}

func (r *PipelineRunner) analyze(l *applogger.Logger, report *models.RunReport, snaps map[string]models.MarketSnapshot) models.AnalyticsBatchResult {
	start := time.Now()
	batch := r.analyzer.Analyze(snaps)

	ar := models.AnalyzeStageReport{CorrelationEdges: len(batch.Edges)}
	for _, o := range batch.Failed() {
		ar.MarketsFailed = append(ar.MarketsFailed, models.ItemFailure{ID: o.MarketID, Reason: o.Err.Error()})
		r.metrics.RecordItemFailure("analyze", errorKind(o.Err))
		l.Warn("market analysis failed", applogger.String("market_id", o.MarketID), applogger.Error(o.Err))
	}
	ar.MarketsAnalyzed = len(batch.Outcomes) - len(ar.MarketsFailed)
	failures := len(ar.MarketsFailed)
	if batch.GraphErr != nil {
		ar.GraphError = batch.GraphErr.Error()
		failures++
		r.metrics.RecordItemFailure("analyze", "graph")
		l.Warn("correlation graph failed", applogger.Error(batch.GraphErr))
	}
	ar.Status = stageStatus(ar.MarketsAnalyzed, failures)
	ar.Duration = time.Since(start)
	report.Analyze = &ar

	r.metrics.RecordStage("analyze", ar.Status, ar.Duration.Seconds())
	l.Info("analyze stage done",
		applogger.String("status", string(ar.Status)),
		applogger.Int("analyzed", ar.MarketsAnalyzed),
		applogger.Int("failed", len(ar.MarketsFailed)),
		applogger.Int("edges", ar.CorrelationEdges),
		applogger.Duration("duration_ms", ar.Duration),
	)
	return batch
}

func (r *PipelineRunner) persist(ctx context.Context, l *applogger.Logger, batch models.AnalyticsBatchResult) models.PersistenceReport {
	start := time.Now()
	analytics := batch.Succeeded()
	var pr models.PersistenceReport
	if len(analytics) == 0 && len(batch.Edges) == 0 {
		pr.Status = models.StatusSkipped
		r.metrics.RecordStage("persist", pr.Status, 0)
		l.Warn("persist stage skipped, nothing to write")
		return pr
	}

	updatedAt := r.now().UTC()
	err := r.store.WithBatch(ctx, func(w drepo.StateWriter) error {
		for _, a := range analytics {
			if err := w.UpsertState(ctx, models.NewDailyState(a, batch.AsOfDate, updatedAt)); err != nil {
				pr.FailedMarkets = append(pr.FailedMarkets, models.ItemFailure{ID: a.MarketID, Reason: err.Error()})
				continue
			}
			pr.SavedMarkets = append(pr.SavedMarkets, a.MarketID)
		}
		for _, e := range batch.Edges {
			if err := w.UpsertEdge(ctx, e, updatedAt); err != nil {
				pr.FailedEdges = append(pr.FailedEdges, models.ItemFailure{ID: e.SourceID + "-" + e.TargetID, Reason: err.Error()})
				continue
			}
			pr.CorrelationsSaved++
		}
		return nil
	})
	if err != nil {
		// the whole transaction is gone; nothing from this batch is stored
		pr = models.PersistenceReport{}
		for _, a := range analytics {
			pr.FailedMarkets = append(pr.FailedMarkets, models.ItemFailure{ID: a.MarketID, Reason: err.Error()})
		}
		for _, e := range batch.Edges {
			pr.FailedEdges = append(pr.FailedEdges, models.ItemFailure{ID: e.SourceID + "-" + e.TargetID, Reason: err.Error()})
		}
		l.Error("persist batch failed", applogger.Error(err))
	}

	pr.MarketsSaved = len(pr.SavedMarkets)
	pr.MarketsFailed = len(pr.FailedMarkets)
	pr.CorrelationsFailed = len(pr.FailedEdges)
	for _, f := range pr.FailedMarkets {
		r.metrics.RecordItemFailure("persist", "state")
		l.Warn("market state not persisted", applogger.String("market_id", f.ID), applogger.String("reason", f.Reason))
	}
	for _, f := range pr.FailedEdges {
		r.metrics.RecordItemFailure("persist", "edge")
		l.Warn("correlation edge not persisted", applogger.String("edge", f.ID), applogger.String("reason", f.Reason))
	}
	pr.Status = stageStatus(pr.MarketsSaved+pr.CorrelationsSaved, pr.MarketsFailed+pr.CorrelationsFailed)

	dur := time.Since(start)
	r.metrics.RecordStage("persist", pr.Status, dur.Seconds())
	l.Info("persist stage done",
		applogger.String("status", string(pr.Status)),
		applogger.Int("markets_saved", pr.MarketsSaved),
		applogger.Int("markets_failed", pr.MarketsFailed),
		applogger.Int("correlations_saved", pr.CorrelationsSaved),
		applogger.Int("correlations_failed", pr.CorrelationsFailed),
		applogger.Duration("duration_ms", dur),
	)
	return pr
}

func (r *PipelineRunner) finish(ctx context.Context, l *applogger.Logger, report models.RunReport, runErr error) (models.RunReport, error) {
	report.FinishedAt = r.now().UTC()
	r.metrics.RecordRun(report.Status)
	for _, m := range report.Moods {
		r.metrics.RecordMood(m.MarketID, m.Mood.MoodIndex)
	}

	fields := []applogger.Field{
		applogger.String("status", string(report.Status)),
		applogger.Duration("duration_ms", report.Duration()),
	}
	if runErr != nil {
		l.Error("pipeline run failed", append(fields, applogger.Error(runErr))...)
	} else {
		l.Info("pipeline run finished", fields...)
	}

	for _, n := range r.notifiers {
		if err := n.NotifyRun(ctx, report); err != nil {
			l.Warn("run notifier failed", applogger.Error(err))
		}
	}
	return report, runErr
}

func savedAnalytics(batch models.AnalyticsBatchResult, saved []string) []models.MarketAnalytics {
	if len(saved) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(saved))
	for _, id := range saved {
		keep[id] = struct{}{}
	}
	out := make([]models.MarketAnalytics, 0, len(saved))
	for _, a := range batch.Succeeded() {
		if _, ok := keep[a.MarketID]; ok {
			out = append(out, a)
		}
	}
	return out
}

func stageStatus(ok, failed int) models.RunStatus {
	switch {
	case ok == 0:
		return models.StatusFailed
	case failed > 0:
		return models.StatusPartial
	default:
		return models.StatusSuccess
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, models.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, models.ErrComputationFailure):
		return "computation"
	case errors.Is(err, models.ErrPersistenceFailure):
		return "persistence"
	default:
		return "other"
	}
}
