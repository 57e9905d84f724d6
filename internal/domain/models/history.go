package models

import "time"

// Trend is the direction of a metric over a window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// MetricPoint is one dated value of a metric.
type MetricPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MetricComparison summarizes a metric for one market over a window.
type MetricComparison struct {
	MarketID string        `json:"market_id"`
	Metric   Metric        `json:"metric"`
	Current  float64       `json:"current"`
	Previous *float64      `json:"previous,omitempty"`
	Change   *float64      `json:"change,omitempty"`
	Min      float64       `json:"min"`
	Max      float64       `json:"max"`
	Avg      float64       `json:"avg"`
	Trend    Trend         `json:"trend"`
	History  []MetricPoint `json:"history"`
}

// RankingEntry is one row of a ranking.
type RankingEntry struct {
	Rank      int       `json:"rank"`
	MarketID  string    `json:"market_id"`
	Value     float64   `json:"value"`
	Change    *float64  `json:"change,omitempty"`
	MoodLevel MoodLevel `json:"mood_level"`
	Trend     Trend     `json:"trend"`
}

// Rankings is a sorted view of one metric on one date.
type Rankings struct {
	Date    time.Time      `json:"date"`
	Metric  Metric         `json:"metric"`
	Order   string         `json:"order"`
	Entries []RankingEntry `json:"entries"`
}

// NetworkNode is a market in the correlation network.
type NetworkNode struct {
	ID        string    `json:"id"`
	MoodIndex float64   `json:"mood_index"`
	MoodLevel MoodLevel `json:"mood_level"`
}

// Network is the correlation graph together with the latest mood per node.
type Network struct {
	Date  *time.Time        `json:"date,omitempty"`
	Nodes []NetworkNode     `json:"nodes"`
	Edges []CorrelationEdge `json:"edges"`
}
