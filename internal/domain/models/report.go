package models

import "time"

// RunStatus is the overall or per-stage result of a pipeline run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusPartial RunStatus = "partial"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
)

// ItemFailure is a per-item failure detail.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PersistenceReport summarizes the persist stage.
type PersistenceReport struct {
	Status             RunStatus     `json:"status"`
	MarketsSaved       int           `json:"markets_saved"`
	MarketsFailed      int           `json:"markets_failed"`
	CorrelationsSaved  int           `json:"correlations_saved"`
	CorrelationsFailed int           `json:"correlations_failed"`
	SavedMarkets       []string      `json:"saved_markets,omitempty"`
	FailedMarkets      []ItemFailure `json:"failed_markets,omitempty"`
	FailedEdges        []ItemFailure `json:"failed_edges,omitempty"`
}

// FetchStageReport summarizes the fetch stage.
type FetchStageReport struct {
	Status    RunStatus     `json:"status"`
	Requested int           `json:"requested"`
	Succeeded []string      `json:"succeeded"`
	Failed    []ItemFailure `json:"failed,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// AnalyzeStageReport summarizes the analyze stage.
type AnalyzeStageReport struct {
	Status           RunStatus     `json:"status"`
	MarketsAnalyzed  int           `json:"markets_analyzed"`
	MarketsFailed    []ItemFailure `json:"markets_failed,omitempty"`
	CorrelationEdges int           `json:"correlation_edges"`
	GraphError       string        `json:"graph_error,omitempty"`
	Duration         time.Duration `json:"duration_ns"`
}

// RunReport is the full status report of one pipeline run.
type RunReport struct {
	RunID      string              `json:"run_id"`
	AsOfDate   time.Time           `json:"as_of_date"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Status     RunStatus           `json:"status"`
	Fetch      FetchStageReport    `json:"fetch"`
	Analyze    *AnalyzeStageReport `json:"analyze,omitempty"`
	Persist    *PersistenceReport  `json:"persist,omitempty"`
	Moods      []MarketAnalytics   `json:"-"`
}

// Duration returns wall time of the run.
func (r RunReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// CleanupReport summarizes a retention run.
type CleanupReport struct {
	DaysToKeep  int       `json:"days_to_keep"`
	Cutoff      time.Time `json:"cutoff"`
	RowsDeleted int64     `json:"rows_deleted"`
}
