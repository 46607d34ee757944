package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	trialsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "ingest_trials_total",
			Help:      "Trials processed by the ingest pipeline",
		},
		[]string{"result"}, // "ok" / "failed"
	)

	batchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trialmatch",
			Name:      "ingest_batches_total",
			Help:      "Upsert batches sent to the index",
		},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trialmatch",
			Name:      "ingest_batch_duration_seconds",
			Help:      "Embed plus upsert duration per batch",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

var ingestMetricsRegistered bool

// RegisterMetrics registers ingest metrics. Must be called once from main.
func RegisterMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(trialsProcessed)
	prometheus.MustRegister(batchesTotal)
	prometheus.MustRegister(batchDuration)
	ingestMetricsRegistered = true
}
