package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketmood",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of read and trigger endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketmood",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by endpoint",
		},
		[]string{"endpoint"},
	)

	SnapshotCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketmood",
			Subsystem: "api",
			Name:      "snapshot_cache_total",
			Help:      "Latest snapshot cache lookups by result",
		},
		[]string{"result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, SnapshotCache)
	})
}
