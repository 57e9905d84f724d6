package models

import "time"

// Provenance identifies which source produced a snapshot.
type Provenance string

const (
	SourceYahoo      Provenance = "yahoo"
	SourceClickHouse Provenance = "clickhouse"
	SourceSynthetic  Provenance = "synthetic"
)

// MarketSnapshot is the recent price/volume history of one market as returned
// by a SnapshotSource. TrailingPrices and TrailingVolumes are chronological
// and end with the bar described by ClosePrice and Volume.
type MarketSnapshot struct {
	MarketID        string
	AsOfDate        time.Time
	ClosePrice      float64
	OpenPrice       float64
	HighPrice       float64
	LowPrice        float64
	Volume          float64
	ChangePct       float64
	TrailingPrices  []float64
	TrailingVolumes []float64
	Source          Provenance
}

// Empty reports whether the snapshot carries no usable price history.
func (s MarketSnapshot) Empty() bool { return len(s.TrailingPrices) == 0 }

// FetchResult is the outcome of fetching many markets at once.
type FetchResult struct {
	Succeeded []string
	Failed    []FetchFailure
	Snapshots map[string]MarketSnapshot
}

// FetchFailure records why one market could not be fetched.
type FetchFailure struct {
	MarketID string
	Err      error
}

// FailedIDs returns the ids of failed markets in fetch order.
func (r FetchResult) FailedIDs() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.MarketID)
	}
	return out
}
