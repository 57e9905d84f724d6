package models

import "time"

// DailyState is the persisted point-in-time record of one market, keyed by
// (MarketID, Date).
type DailyState struct {
	MarketID      string     `json:"market_id"`
	Date          time.Time  `json:"date"`
	MoodIndex     float64    `json:"mood_index"`
	MoodLevel     MoodLevel  `json:"mood_level"`
	Volatility30d float64    `json:"volatility_30d"`
	TrendStrength float64    `json:"trend_strength"`
	ReturnToday   float64    `json:"return_today"`
	VolumeScore   float64    `json:"volume_score"`
	ClosePrice    float64    `json:"close_price"`
	Volume        float64    `json:"volume"`
	ChangePct     float64    `json:"change_pct"`
	Source        Provenance `json:"source"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewDailyState projects analytics onto the persisted layout.
func NewDailyState(a MarketAnalytics, date, now time.Time) DailyState {
	return DailyState{
		MarketID:      a.MarketID,
		Date:          date,
		MoodIndex:     a.Mood.MoodIndex,
		MoodLevel:     a.Mood.MoodLevel,
		Volatility30d: a.Features.Volatility30d,
		TrendStrength: a.Mood.TrendStrength,
		ReturnToday:   a.Features.ReturnToday,
		VolumeScore:   a.Features.VolumeScore,
		ClosePrice:    a.ClosePrice,
		Volume:        a.Volume,
		ChangePct:     a.ChangePct,
		Source:        a.Source,
		UpdatedAt:     now,
	}
}

// StoredEdge is a persisted correlation edge.
type StoredEdge struct {
	CorrelationEdge
	UpdatedAt time.Time `json:"updated_at"`
}

// LatestSnapshot is the newest persisted state across all markets.
type LatestSnapshot struct {
	Date   time.Time    `json:"date"`
	States []DailyState `json:"states"`
	Edges  []StoredEdge `json:"edges"`
}
