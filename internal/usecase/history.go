package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"MarketMood/internal/domain/models"
	drepo "MarketMood/internal/domain/repository"
	"MarketMood/pkg/mathx"
	"MarketMood/pkg/util"
)

// trendTolerance is the smallest window change reported as up or down.
const trendTolerance = 0.01

// HistoryService answers read-side queries over persisted states.
type HistoryService struct {
	reader drepo.StateReader
	now    func() time.Time
}

func NewHistoryService(reader drepo.StateReader) *HistoryService {
	return &HistoryService{reader: reader, now: time.Now}
}

func (s *HistoryService) window(days int) (time.Time, time.Time) {
	to := util.StartOfDayUTC(s.now())
	return to.AddDate(0, 0, -days), to
}

// Timeseries returns marketID's states of the last days days, oldest first.
func (s *HistoryService) Timeseries(ctx context.Context, marketID string, days int) ([]models.DailyState, error) {
	from, to := s.window(days)
	states, err := s.reader.StatesBetween(ctx, marketID, from, to)
	if err != nil {
		return nil, fmt.Errorf("timeseries %s: %w", marketID, err)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: no history for %s", models.ErrNotFound, marketID)
	}
	return states, nil
}

// Compare summarizes metric for each market over the window. Markets with no
// stored history are left out; if none has history the result is ErrNotFound.
func (s *HistoryService) Compare(ctx context.Context, marketIDs []string, metric models.Metric, days int) ([]models.MetricComparison, error) {
	from, to := s.window(days)
	out := make([]models.MetricComparison, 0, len(marketIDs))
	for _, id := range marketIDs {
		states, err := s.reader.StatesBetween(ctx, id, from, to)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", id, err)
		}
		if len(states) == 0 {
			continue
		}
		out = append(out, compareOne(id, metric, states))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no history for requested markets", models.ErrNotFound)
	}
	return out, nil
}

func compareOne(id string, metric models.Metric, states []models.DailyState) models.MetricComparison {
	c := models.MetricComparison{
		MarketID: id,
		Metric:   metric,
		History:  make([]models.MetricPoint, len(states)),
		Min:      math.Inf(1),
		Max:      math.Inf(-1),
	}
	var sum float64
	for i, st := range states {
		v := metric.Value(st)
		c.History[i] = models.MetricPoint{Date: st.Date, Value: v}
		c.Min = math.Min(c.Min, v)
		c.Max = math.Max(c.Max, v)
		sum += v
	}
	n := len(states)
	c.Current = c.History[n-1].Value
	if n > 1 {
		prev := c.History[n-2].Value
		change := mathx.Round4(c.Current - prev)
		c.Previous = &prev
		c.Change = &change
	}
	c.Min = mathx.Round4(c.Min)
	c.Max = mathx.Round4(c.Max)
	c.Avg = mathx.Round4(sum / float64(n))
	c.Trend = trendOf(c.Current-c.History[0].Value, trendTolerance)
	return c
}

// Rankings orders the states of the latest stored date by metric.
func (s *HistoryService) Rankings(ctx context.Context, metric models.Metric, order string, limit int) (models.Rankings, error) {
	date, err := s.reader.LatestDate(ctx)
	if err != nil {
		return models.Rankings{}, err
	}
	states, err := s.reader.StatesOn(ctx, date)
	if err != nil {
		return models.Rankings{}, fmt.Errorf("rankings: %w", err)
	}

	desc := order != "asc"
	sort.SliceStable(states, func(i, j int) bool {
		vi, vj := metric.Value(states[i]), metric.Value(states[j])
		if vi != vj {
			if desc {
				return vi > vj
			}
			return vi < vj
		}
		return states[i].MarketID < states[j].MarketID
	})
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}

	r := models.Rankings{Date: date, Metric: metric, Order: "desc", Entries: make([]models.RankingEntry, 0, len(states))}
	if !desc {
		r.Order = "asc"
	}
	for i, st := range states {
		e := models.RankingEntry{
			Rank:      i + 1,
			MarketID:  st.MarketID,
			Value:     metric.Value(st),
			MoodLevel: st.MoodLevel,
			Trend:     models.TrendStable,
		}
		prev, err := s.reader.PreviousState(ctx, st.MarketID, date)
		switch {
		case err == nil:
			change := mathx.Round4(e.Value - metric.Value(prev))
			e.Change = &change
			e.Trend = trendOf(change, 0)
		case !errors.Is(err, models.ErrNotFound):
			return models.Rankings{}, fmt.Errorf("rankings %s: %w", st.MarketID, err)
		}
		r.Entries = append(r.Entries, e)
	}
	return r, nil
}

// Network returns the latest mood per market and the stored edges with
// |weight| >= minWeight. An empty store yields an empty network.
func (s *HistoryService) Network(ctx context.Context, minWeight float64) (models.Network, error) {
	net := models.Network{Nodes: []models.NetworkNode{}, Edges: []models.CorrelationEdge{}}
	date, err := s.reader.LatestDate(ctx)
	switch {
	case err == nil:
		states, err := s.reader.StatesOn(ctx, date)
		if err != nil {
			return models.Network{}, fmt.Errorf("network: %w", err)
		}
		net.Date = &date
		for _, st := range states {
			net.Nodes = append(net.Nodes, models.NetworkNode{ID: st.MarketID, MoodIndex: st.MoodIndex, MoodLevel: st.MoodLevel})
		}
	case !errors.Is(err, models.ErrNotFound):
		return models.Network{}, fmt.Errorf("network: %w", err)
	}

	edges, err := s.reader.Edges(ctx, minWeight)
	if err != nil {
		return models.Network{}, fmt.Errorf("network: %w", err)
	}
	for _, e := range edges {
		net.Edges = append(net.Edges, e.CorrelationEdge)
	}
	return net, nil
}

func trendOf(delta, tol float64) models.Trend {
	switch {
	case delta > tol:
		return models.TrendUp
	case delta < -tol:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}
