package repository

import (
	"context"
	"fmt"

	"MarketMood/internal/domain/models"
	pkgkafka "MarketMood/pkg/kafka"
	"MarketMood/pkg/util"
)

// BatchPublisher is the slice of *kafka.Producer used here.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaRunPublisher announces finished runs on two topics: one summary per
// run, and one mood record per analyzed market keyed by market id.
type KafkaRunPublisher struct {
	producer   BatchPublisher
	runsTopic  string
	moodsTopic string
}

func NewKafkaRunPublisher(producer BatchPublisher, runsTopic, moodsTopic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{producer: producer, runsTopic: runsTopic, moodsTopic: moodsTopic}
}

type runEvent struct {
	RunID       string           `json:"run_id"`
	AsOfDate    string           `json:"as_of_date"`
	Status      models.RunStatus `json:"status"`
	DurationMS  int64            `json:"duration_ms"`
	Fetched     int              `json:"fetched"`
	FetchFailed int              `json:"fetch_failed"`
	Saved       int              `json:"markets_saved"`
	Edges       int              `json:"correlations_saved"`
}

type moodEvent struct {
	RunID         string           `json:"run_id"`
	MarketID      string           `json:"market_id"`
	AsOfDate      string           `json:"as_of_date"`
	MoodIndex     float64          `json:"mood_index"`
	MoodLevel     models.MoodLevel `json:"mood_level"`
	TrendStrength float64          `json:"trend_strength"`
	ClosePrice    float64          `json:"close_price"`
	Source        string           `json:"source"`
}

func (p *KafkaRunPublisher) NotifyRun(ctx context.Context, r models.RunReport) error {
	if r.Status == models.StatusSkipped {
		return nil
	}
	date := util.FormatDate(r.AsOfDate)
	ev := runEvent{
		RunID:       r.RunID,
		AsOfDate:    date,
		Status:      r.Status,
		DurationMS:  r.Duration().Milliseconds(),
		Fetched:     len(r.Fetch.Succeeded),
		FetchFailed: len(r.Fetch.Failed),
	}
	if r.Persist != nil {
		ev.Saved = r.Persist.MarketsSaved
		ev.Edges = r.Persist.CorrelationsSaved
	}
	if err := p.producer.PublishBatch(ctx, p.runsTopic, []pkgkafka.Message{{Key: []byte(date), Value: ev}}); err != nil {
		return fmt.Errorf("publish run: %w", err)
	}

	if len(r.Moods) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(r.Moods))
	for _, m := range r.Moods {
		msgs = append(msgs, pkgkafka.Message{
			Key: []byte(m.MarketID),
			Value: moodEvent{
				RunID:         r.RunID,
				MarketID:      m.MarketID,
				AsOfDate:      date,
				MoodIndex:     m.Mood.MoodIndex,
				MoodLevel:     m.Mood.MoodLevel,
				TrendStrength: m.Mood.TrendStrength,
				ClosePrice:    m.ClosePrice,
				Source:        string(m.Source),
			},
		})
	}
	if err := p.producer.PublishBatch(ctx, p.moodsTopic, msgs); err != nil {
		return fmt.Errorf("publish moods: %w", err)
	}
	return nil
}

func (p *KafkaRunPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
