package models

import (
	"fmt"
	"strings"
)

// Metric names a numeric column of DailyState that can be ranked or compared.
type Metric string

const (
	MetricMoodIndex     Metric = "mood_index"
	MetricVolatility30d Metric = "volatility_30d"
	MetricTrendStrength Metric = "trend_strength"
	MetricChangePct     Metric = "change_pct"
	MetricClosePrice    Metric = "close_price"
)

var metricAccessors = map[Metric]func(DailyState) float64{
	MetricMoodIndex:     func(s DailyState) float64 { return s.MoodIndex },
	MetricVolatility30d: func(s DailyState) float64 { return s.Volatility30d },
	MetricTrendStrength: func(s DailyState) float64 { return s.TrendStrength },
	MetricChangePct:     func(s DailyState) float64 { return s.ChangePct },
	MetricClosePrice:    func(s DailyState) float64 { return s.ClosePrice },
}

// Metrics lists every supported metric in a stable order.
func Metrics() []Metric {
	return []Metric{MetricMoodIndex, MetricVolatility30d, MetricTrendStrength, MetricChangePct, MetricClosePrice}
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricAccessors[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Value extracts the metric from a state. Callers are expected to have
// obtained m from ParseMetric; an unknown metric yields 0.
func (m Metric) Value(s DailyState) float64 {
	if fn, ok := metricAccessors[m]; ok {
		return fn(s)
	}
	return 0
}
