package models

import "time"

// FeatureSet holds the raw and normalized signals derived from one snapshot.
type FeatureSet struct {
	ReturnToday          float64
	Volatility30d        float64
	VolumeScore          float64
	ReturnNormalized     float64
	VolatilityNormalized float64
	VolumeNormalized     float64
}

// MoodLevel is the discrete label of a mood index.
type MoodLevel string

const (
	VeryBearish MoodLevel = "very_bearish"
	Bearish     MoodLevel = "bearish"
	Neutral     MoodLevel = "neutral"
	Bullish     MoodLevel = "bullish"
	VeryBullish MoodLevel = "very_bullish"
)

// MoodResult is the bounded sentiment of one market.
type MoodResult struct {
	MoodIndex     float64
	MoodLevel     MoodLevel
	TrendStrength float64
}

// Weights configures the linear mood model.
type Weights struct {
	Return     float64
	Volatility float64
	Volume     float64
}

// DefaultWeights returns the reference weights.
func DefaultWeights() Weights {
	return Weights{Return: 0.5, Volatility: -0.3, Volume: 0.2}
}

// Sign is the direction of a correlation edge.
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
)

// CorrelationEdge is an undirected, canonical (SourceID < TargetID) edge.
type CorrelationEdge struct {
	SourceID string  `json:"source"`
	TargetID string  `json:"target"`
	Weight   float64 `json:"weight"`
	Sign     Sign    `json:"sign"`
}

// MarketAnalytics is everything the persist stage needs for one market.
type MarketAnalytics struct {
	MarketID   string
	Features   FeatureSet
	Mood       MoodResult
	ClosePrice float64
	Volume     float64
	ChangePct  float64
	Source     Provenance
}

// MarketOutcome is either a computed MarketAnalytics or the error that
// prevented it.
type MarketOutcome struct {
	MarketID  string
	Analytics *MarketAnalytics
	Err       error
}

// OK reports whether the outcome carries analytics.
func (o MarketOutcome) OK() bool { return o.Err == nil && o.Analytics != nil }

// AnalyticsBatchResult is the immutable output of one analyze stage.
type AnalyticsBatchResult struct {
	AsOfDate time.Time
	Outcomes []MarketOutcome
	Edges    []CorrelationEdge
	GraphErr error
}

// Succeeded returns the analytics of every market that computed cleanly.
func (r AnalyticsBatchResult) Succeeded() []MarketAnalytics {
	out := make([]MarketAnalytics, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, *o.Analytics)
		}
	}
	return out
}

// Failed returns the outcomes that carry an error.
func (r AnalyticsBatchResult) Failed() []MarketOutcome {
	var out []MarketOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}
