package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
)

var (
	runDay = time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC)
	runNow = func() time.Time { return runDay.Add(9 * time.Hour) }
)

func newRunner(src fakeBatchSource, an fakeAnalyzer, store *memStore, m *fakeMetrics, n ...*recordingNotifier) *PipelineRunner {
	opts := []RunnerOption{WithRunnerClock(runNow)}
	for _, x := range n {
		opts = append(opts, WithNotifiers(x))
	}
	return NewPipelineRunner(src, an, store, m, []string{"A", "B", "C"}, 30, opts...)
}

func TestRunSuccess(t *testing.T) {
	store := newMemStore()
	m := newFakeMetrics()
	edge := models.CorrelationEdge{SourceID: "A", TargetID: "B", Weight: 0.9, Sign: models.SignPositive}
	r := newRunner(fakeBatchSource{}, fakeAnalyzer{asOf: runDay, edges: []models.CorrelationEdge{edge}}, store, m)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, rep.Status)
	assert.Equal(t, runDay, rep.AsOfDate)
	assert.NotEmpty(t, rep.RunID)
	require.NotNil(t, rep.Persist)
	assert.Equal(t, 3, rep.Persist.MarketsSaved)
	assert.Equal(t, 1, rep.Persist.CorrelationsSaved)
	assert.Len(t, rep.Moods, 3)
	assert.Equal(t, []models.RunStatus{models.StatusSuccess}, m.runs)
	assert.Equal(t, 0.25, m.moods["B"])

	states, err := store.StatesOn(context.Background(), runDay)
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, runNow(), states[0].UpdatedAt)
}

func TestRunPartialWhenOneFetchFails(t *testing.T) {
	store := newMemStore()
	m := newFakeMetrics()
	src := fakeBatchSource{fail: map[string]error{"B": models.ErrSourceUnavailable}}
	r := newRunner(src, fakeAnalyzer{asOf: runDay}, store, m)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, rep.Status)
	assert.Equal(t, models.StatusPartial, rep.Fetch.Status)
	assert.Equal(t, []string{"A", "C"}, rep.Fetch.Succeeded)
	require.Len(t, rep.Fetch.Failed, 1)
	assert.Equal(t, "B", rep.Fetch.Failed[0].ID)
	assert.Equal(t, 2, rep.Persist.MarketsSaved)
	assert.Equal(t, 1, m.failures["fetch:source_unavailable"])
}

func TestRunFailsWhenNothingFetched(t *testing.T) {
	store := newMemStore()
	m := newFakeMetrics()
	n := &recordingNotifier{}
	all := map[string]error{"A": models.ErrSourceUnavailable, "B": models.ErrSourceUnavailable, "C": models.ErrSourceUnavailable}
	r := newRunner(fakeBatchSource{fail: all}, fakeAnalyzer{asOf: runDay}, store, m, n)

	rep, err := r.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrNoDataAvailable)
	assert.Equal(t, models.StatusFailed, rep.Status)
	assert.Nil(t, rep.Analyze)
	assert.Nil(t, rep.Persist)
	assert.Zero(t, store.upserts)
	require.Len(t, n.reports, 1)
	assert.Equal(t, models.StatusFailed, n.reports[0].Status)
}

func TestRunAnalyzeAndPersistFailuresArePartial(t *testing.T) {
	store := newMemStore()
	store.failState["C"] = true
	m := newFakeMetrics()
	r := newRunner(fakeBatchSource{}, fakeAnalyzer{asOf: runDay, fail: map[string]bool{"A": true}}, store, m)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, rep.Status)
	require.NotNil(t, rep.Analyze)
	assert.Equal(t, 2, rep.Analyze.MarketsAnalyzed)
	require.Len(t, rep.Analyze.MarketsFailed, 1)
	assert.Equal(t, 1, rep.Persist.MarketsSaved)
	assert.Equal(t, 1, rep.Persist.MarketsFailed)
	assert.Equal(t, "C", rep.Persist.FailedMarkets[0].ID)
	assert.Equal(t, []string{"B"}, rep.Persist.SavedMarkets)
	require.Len(t, rep.Moods, 1)
	assert.Equal(t, "B", rep.Moods[0].MarketID)
	assert.Equal(t, 1, m.failures["analyze:computation"])
	assert.Equal(t, 1, m.failures["persist:state"])
}

func TestRunFailsWhenBatchCannotCommit(t *testing.T) {
	store := newMemStore()
	store.batchErr = errors.New("disk full")
	n := &recordingNotifier{err: errors.New("listener down")}
	r := newRunner(fakeBatchSource{}, fakeAnalyzer{asOf: runDay}, store, newFakeMetrics(), n)

	rep, err := r.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Equal(t, models.StatusFailed, rep.Status)
	assert.Equal(t, 3, rep.Persist.MarketsFailed)
	assert.Empty(t, rep.Moods)
	assert.Len(t, n.reports, 1)
}

func TestRunFailsWhenEveryAnalysisFails(t *testing.T) {
	store := newMemStore()
	r := newRunner(fakeBatchSource{}, fakeAnalyzer{asOf: runDay, fail: map[string]bool{"A": true, "B": true, "C": true}}, store, newFakeMetrics())

	rep, err := r.Run(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
	assert.Equal(t, models.StatusFailed, rep.Status)
	assert.Equal(t, models.StatusSkipped, rep.Persist.Status)
	assert.Zero(t, store.upserts)
}

func TestRunPartialWhenOnlyEdgesPersist(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"A", "B", "C"} {
		store.failState[id] = true
	}
	edge := models.CorrelationEdge{SourceID: "A", TargetID: "B", Weight: 0.8, Sign: models.SignPositive}
	r := newRunner(fakeBatchSource{}, fakeAnalyzer{asOf: runDay, edges: []models.CorrelationEdge{edge}}, store, newFakeMetrics())

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, rep.Status)
	require.NotNil(t, rep.Persist)
	assert.Equal(t, models.StatusPartial, rep.Persist.Status)
	assert.Zero(t, rep.Persist.MarketsSaved)
	assert.Equal(t, 3, rep.Persist.MarketsFailed)
	assert.Equal(t, 1, rep.Persist.CorrelationsSaved)
	assert.Empty(t, rep.Moods)
}
