package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"MarketMood/internal/domain/models"
	drepo "MarketMood/internal/domain/repository"
	"MarketMood/pkg/util"
)

type stateKey struct {
	id   string
	date string
}

// memStore is an in-memory PersistenceGateway.
type memStore struct {
	mu        sync.Mutex
	states    map[stateKey]models.DailyState
	edges     map[string]models.StoredEdge
	failState map[string]bool
	batchErr  error
	upserts   int
	deletes   []time.Time
}

func newMemStore() *memStore {
	return &memStore{
		states:    map[stateKey]models.DailyState{},
		edges:     map[string]models.StoredEdge{},
		failState: map[string]bool{},
	}
}

func (m *memStore) UpsertState(_ context.Context, s models.DailyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.failState[s.MarketID] {
		return fmt.Errorf("%w: rejected %s", models.ErrPersistenceFailure, s.MarketID)
	}
	m.states[stateKey{s.MarketID, util.FormatDate(s.Date)}] = s
	return nil
}

func (m *memStore) UpsertEdge(_ context.Context, e models.CorrelationEdge, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.edges[e.SourceID+"|"+e.TargetID] = models.StoredEdge{CorrelationEdge: e, UpdatedAt: at}
	return nil
}

func (m *memStore) WithBatch(_ context.Context, fn func(w drepo.StateWriter) error) error {
	if m.batchErr != nil {
		return m.batchErr
	}
	return fn(m)
}

func (m *memStore) LatestDate(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, s := range m.states {
		if s.Date.After(latest) {
			latest = s.Date
		}
	}
	if latest.IsZero() {
		return time.Time{}, models.ErrNotFound
	}
	return latest, nil
}

func (m *memStore) StatesOn(_ context.Context, date time.Time) ([]models.DailyState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DailyState
	for _, s := range m.states {
		if s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out, nil
}

func (m *memStore) StatesBetween(_ context.Context, id string, from, to time.Time) ([]models.DailyState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DailyState
	for _, s := range m.states {
		if s.MarketID == id && !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) PreviousState(_ context.Context, id string, before time.Time) (models.DailyState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best models.DailyState
	for _, s := range m.states {
		if s.MarketID == id && s.Date.Before(before) && s.Date.After(best.Date) {
			best = s
		}
	}
	if best.MarketID == "" {
		return models.DailyState{}, models.ErrNotFound
	}
	return best, nil
}

func (m *memStore) Edges(_ context.Context, min float64) ([]models.StoredEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoredEdge
	for _, e := range m.edges {
		if e.Weight >= min || -e.Weight >= min {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID+out[i].TargetID < out[j].SourceID+out[j].TargetID })
	return out, nil
}

func (m *memStore) LatestSnapshot(ctx context.Context) (models.LatestSnapshot, error) {
	d, err := m.LatestDate(ctx)
	if err != nil {
		return models.LatestSnapshot{}, err
	}
	states, _ := m.StatesOn(ctx, d)
	edges, _ := m.Edges(ctx, 0)
	return models.LatestSnapshot{Date: d, States: states, Edges: edges}, nil
}

func (m *memStore) DeleteStatesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, cutoff)
	var n int64
	for k, s := range m.states {
		if s.Date.Before(cutoff) {
			delete(m.states, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

type fakeBatchSource struct {
	fail map[string]error
}

func (f fakeBatchSource) FetchMany(_ context.Context, ids []string, _ int) models.FetchResult {
	res := models.FetchResult{Snapshots: map[string]models.MarketSnapshot{}}
	for _, id := range ids {
		if err := f.fail[id]; err != nil {
			res.Failed = append(res.Failed, models.FetchFailure{MarketID: id, Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		res.Snapshots[id] = models.MarketSnapshot{MarketID: id, TrailingPrices: []float64{1, 2}, ClosePrice: 2}
	}
	return res
}

// fakeAnalyzer scores every market 0.25 except those listed in fail.
type fakeAnalyzer struct {
	asOf  time.Time
	fail  map[string]bool
	edges []models.CorrelationEdge
}

func (f fakeAnalyzer) Analyze(batch map[string]models.MarketSnapshot) models.AnalyticsBatchResult {
	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	res := models.AnalyticsBatchResult{AsOfDate: f.asOf, Edges: f.edges}
	for _, id := range ids {
		if f.fail[id] {
			res.Outcomes = append(res.Outcomes, models.MarketOutcome{MarketID: id, Err: models.ErrComputationFailure})
			continue
		}
		res.Outcomes = append(res.Outcomes, models.MarketOutcome{MarketID: id, Analytics: &models.MarketAnalytics{
			MarketID:   id,
			Mood:       models.MoodResult{MoodIndex: 0.25, MoodLevel: models.Bullish},
			ClosePrice: batch[id].ClosePrice,
		}})
	}
	return res
}

type fakeMetrics struct {
	mu       sync.Mutex
	runs     []models.RunStatus
	stages   map[string]models.RunStatus
	failures map[string]int
	moods    map[string]float64
	jobs     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		stages:   map[string]models.RunStatus{},
		failures: map[string]int{},
		moods:    map[string]float64{},
		jobs:     map[string]int{},
	}
}

func (f *fakeMetrics) RecordStage(stage string, status models.RunStatus, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages[stage] = status
}

func (f *fakeMetrics) RecordRun(status models.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, status)
}

func (f *fakeMetrics) RecordItemFailure(stage, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[stage+":"+kind]++
}

func (f *fakeMetrics) RecordMood(id string, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moods[id] = v
}

func (f *fakeMetrics) RecordJob(job string, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job]++
}

type recordingNotifier struct {
	reports []models.RunReport
	err     error
}

func (r *recordingNotifier) NotifyRun(_ context.Context, rep models.RunReport) error {
	r.reports = append(r.reports, rep)
	return r.err
}
