package analytics

import (
	"fmt"
	"sort"
	"time"

	"MarketMood/internal/domain/models"
	"MarketMood/internal/domain/service"
	"MarketMood/pkg/util"
)

// Engine runs features, mood and correlation over one batch of snapshots.
// It performs no I/O.
type Engine struct {
	features service.FeatureExtractor
	mood     service.MoodScorer
	corr     service.CorrelationBuilder
	weights  models.Weights
	now      func() time.Time
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithWeights sets the mood weights used for every market.
func WithWeights(w models.Weights) EngineOption {
	return func(e *Engine) { e.weights = w }
}

// WithClock overrides the clock used to stamp the batch date.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(fe service.FeatureExtractor, ms service.MoodScorer, cb service.CorrelationBuilder, opts ...EngineOption) *Engine {
	e := &Engine{
		features: fe,
		mood:     ms,
		corr:     cb,
		weights:  models.DefaultWeights(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze computes the batch result stamped with today's UTC date.
func (e *Engine) Analyze(batch map[string]models.MarketSnapshot) models.AnalyticsBatchResult {
	return e.AnalyzeAt(util.StartOfDayUTC(e.now()), batch)
}

// AnalyzeAt computes the batch result for an explicit as-of date. A failing
// market yields a failed outcome; a failing graph yields no edges.
func (e *Engine) AnalyzeAt(asOf time.Time, batch map[string]models.MarketSnapshot) models.AnalyticsBatchResult {
	ids := make([]string, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := models.AnalyticsBatchResult{
		AsOfDate: asOf,
		Outcomes: make([]models.MarketOutcome, 0, len(ids)),
	}
	for _, id := range ids {
		res.Outcomes = append(res.Outcomes, e.analyzeOne(id, batch[id]))
	}

	edges, err := e.buildGraph(batch)
	if err != nil {
		res.GraphErr = err
		edges = []models.CorrelationEdge{}
	}
	res.Edges = edges
	return res
}

func (e *Engine) analyzeOne(id string, snap models.MarketSnapshot) (out models.MarketOutcome) {
	out.MarketID = id
	defer func() {
		if r := recover(); r != nil {
			out.Analytics = nil
			out.Err = fmt.Errorf("%w: %s: panic: %v", models.ErrComputationFailure, id, r)
		}
	}()

	if len(snap.TrailingPrices) < 2 {
		out.Err = fmt.Errorf("%w: %s has %d prices", models.ErrInsufficientData, id, len(snap.TrailingPrices))
		return out
	}
	fs, err := e.features.Extract(snap)
	if err != nil {
		out.Err = fmt.Errorf("features %s: %w", id, err)
		return out
	}
	m, err := e.mood.Score(fs, e.weights)
	if err != nil {
		out.Err = fmt.Errorf("mood %s: %w", id, err)
		return out
	}
	out.Analytics = &models.MarketAnalytics{
		MarketID:   id,
		Features:   fs,
		Mood:       m,
		ClosePrice: snap.ClosePrice,
		Volume:     snap.Volume,
		ChangePct:  snap.ChangePct,
		Source:     snap.Source,
	}
	return out
}

func (e *Engine) buildGraph(batch map[string]models.MarketSnapshot) (edges []models.CorrelationEdge, err error) {
	defer func() {
		if r := recover(); r != nil {
			edges = nil
			err = fmt.Errorf("%w: correlation panic: %v", models.ErrComputationFailure, r)
		}
	}()
	edges, err = e.corr.Build(batch)
	if err != nil {
		return nil, fmt.Errorf("correlation: %w", err)
	}
	if edges == nil {
		edges = []models.CorrelationEdge{}
	}
	return edges, nil
}
