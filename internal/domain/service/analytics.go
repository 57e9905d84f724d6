package service

import "MarketMood/internal/domain/models"

// FeatureExtractor derives a feature set from one snapshot.
type FeatureExtractor interface {
	Extract(s models.MarketSnapshot) (models.FeatureSet, error)
}

// MoodScorer turns a feature set into a bounded mood.
type MoodScorer interface {
	Score(f models.FeatureSet, w models.Weights) (models.MoodResult, error)
}

// CorrelationBuilder derives the correlation graph of a batch.
type CorrelationBuilder interface {
	Build(batch map[string]models.MarketSnapshot) ([]models.CorrelationEdge, error)
}

// BatchAnalyzer runs the analyze stage over a fetched batch.
type BatchAnalyzer interface {
	Analyze(batch map[string]models.MarketSnapshot) models.AnalyticsBatchResult
}
