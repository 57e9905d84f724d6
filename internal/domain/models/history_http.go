package models

// TimeseriesRequest is the HTTP request for a market's state history.
type TimeseriesRequest struct {
	MarketID string `query:"market_id" validate:"required"`
	Days     int    `query:"days" default:"30" validate:"min=1,max=365"`
}

// CompareRequest is the HTTP request for comparing markets on a metric.
type CompareRequest struct {
	MarketIDs string `query:"market_ids" validate:"required"`
	Metric    string `query:"metric" default:"mood_index" validate:"required"`
	Days      int    `query:"days" default:"30" validate:"min=2,max=365"`
}

// RankingsRequest is the HTTP request for ranking markets.
type RankingsRequest struct {
	Metric string `query:"metric" default:"mood_index" validate:"required"`
	Order  string `query:"order" default:"desc" validate:"oneof=asc desc"`
	Limit  int    `query:"limit" default:"15" validate:"min=1,max=50"`
}

// NetworkRequest is the HTTP request for the correlation network.
type NetworkRequest struct {
	MinWeight float64 `query:"min_weight" default:"0.6" validate:"min=0,max=1"`
}

// CleanupRequest is the HTTP request for a manual retention run. An absent
// days_to_keep falls back to the configured horizon.
type CleanupRequest struct {
	DaysToKeep int `query:"days_to_keep" validate:"min=0,max=3650"`
}
