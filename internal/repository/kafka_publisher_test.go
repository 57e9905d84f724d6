package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketMood/internal/domain/models"
	pkgkafka "MarketMood/pkg/kafka"
)

type recordingProducer struct {
	batches map[string][]pkgkafka.Message
	err     error
}

func (r *recordingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	if r.err != nil {
		return r.err
	}
	if r.batches == nil {
		r.batches = map[string][]pkgkafka.Message{}
	}
	r.batches[topic] = append(r.batches[topic], msgs...)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func TestKafkaRunPublisher(t *testing.T) {
	prod := &recordingProducer{}
	p := NewKafkaRunPublisher(prod, "runs", "moods")
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	report := models.RunReport{
		RunID:      "run-1",
		AsOfDate:   time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Status:     models.StatusPartial,
		Fetch:      models.FetchStageReport{Succeeded: []string{"A", "B"}, Failed: []models.ItemFailure{{ID: "C"}}},
		Persist:    &models.PersistenceReport{MarketsSaved: 2, CorrelationsSaved: 1},
		Moods: []models.MarketAnalytics{
			{MarketID: "A", Mood: models.MoodResult{MoodIndex: 0.3, MoodLevel: models.Bullish}},
			{MarketID: "B", Mood: models.MoodResult{MoodIndex: -0.2, MoodLevel: models.Bearish}},
		},
	}
	require.NoError(t, p.NotifyRun(context.Background(), report))

	require.Len(t, prod.batches["runs"], 1)
	ev := prod.batches["runs"][0].Value.(runEvent)
	assert.Equal(t, "2025-05-01", ev.AsOfDate)
	assert.Equal(t, int64(1500), ev.DurationMS)
	assert.Equal(t, 2, ev.Fetched)
	assert.Equal(t, 1, ev.FetchFailed)
	assert.Equal(t, 2, ev.Saved)

	moods := prod.batches["moods"]
	require.Len(t, moods, 2)
	assert.Equal(t, []byte("A"), moods[0].Key)
	assert.Equal(t, models.Bearish, moods[1].Value.(moodEvent).MoodLevel)
}

func TestKafkaRunPublisherSkipsAndErrors(t *testing.T) {
	prod := &recordingProducer{}
	p := NewKafkaRunPublisher(prod, "runs", "moods")
	require.NoError(t, p.NotifyRun(context.Background(), models.RunReport{Status: models.StatusSkipped}))
	assert.Empty(t, prod.batches)

	prod.err = errors.New("broker down")
	err := p.NotifyRun(context.Background(), models.RunReport{Status: models.StatusFailed})
	assert.ErrorContains(t, err, "broker down")
}
