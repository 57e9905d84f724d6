package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketMood/internal/domain/models"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	itemFailures  *prometheus.CounterVec
	moodIndex     *prometheus.GaugeVec
	jobsTotal     *prometheus.CounterVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketmood_pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "status"},
		),
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketmood_pipeline_runs_total",
				Help: "Completed pipeline runs by overall status",
			},
			[]string{"status"},
		),
		itemFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketmood_pipeline_item_failures_total",
				Help: "Isolated per-item failures by stage and kind",
			},
			[]string{"stage", "kind"},
		),
		moodIndex: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketmood_mood_index",
				Help: "Latest mood index per market",
			},
			[]string{"market"},
		),
		jobsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketmood_scheduler_jobs_total",
				Help: "Scheduler job executions by result",
			},
			[]string{"job", "result"},
		),
	}
}

// RecordStage observes one stage duration.
func (r *Recorder) RecordStage(stage string, status models.RunStatus, seconds float64) {
	r.stageDuration.WithLabelValues(stage, string(status)).Observe(seconds)
}

// RecordRun counts a completed run.
func (r *Recorder) RecordRun(status models.RunStatus) {
	r.runsTotal.WithLabelValues(string(status)).Inc()
}

// RecordItemFailure counts an isolated failure.
func (r *Recorder) RecordItemFailure(stage, kind string) {
	r.itemFailures.WithLabelValues(stage, kind).Inc()
}

// RecordMood sets the latest mood gauge of a market.
func (r *Recorder) RecordMood(marketID string, moodIndex float64) {
	r.moodIndex.WithLabelValues(marketID).Set(moodIndex)
}

// RecordJob counts a scheduler job execution.
func (r *Recorder) RecordJob(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.jobsTotal.WithLabelValues(job, result).Inc()
}
