package services

import "github.com/prometheus/client_golang/prometheus"

var (
	syncedWritesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tallysync_synced_writes_total",
			Help: "Queued writes acknowledged by the backend",
		},
	)
	drainFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tallysync_drain_failures_total",
			Help: "Queued writes that failed to replay and were kept for retry",
		},
	)
	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallysync_refreshes_total",
			Help: "Refresh pulls against the backend",
		},
		[]string{"result"},
	)
	queueLength = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tallysync_queue_length",
			Help: "Pending writes awaiting acknowledgment",
		},
	)
	migrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tallysync_migrations_total",
			Help: "Local-to-cloud migration attempts",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the sync collectors. Call this from main.go
func RegisterMetrics() {
	prometheus.MustRegister(syncedWritesTotal)
	prometheus.MustRegister(drainFailuresTotal)
	prometheus.MustRegister(refreshesTotal)
	prometheus.MustRegister(queueLength)
	prometheus.MustRegister(migrationsTotal)
}
