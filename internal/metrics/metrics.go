package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Chunk outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	ChunksTotal     *prometheus.CounterVec
	RowsApplied     *prometheus.CounterVec
	AuthRejections  *prometheus.CounterVec
	RunsCompleted   prometheus.Counter
	RunsFailed      prometheus.Counter
	IngestTxSeconds prometheus.Histogram
}

// New creates the ingestion collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscope_ingest_chunks_total",
			Help: "Chunks received, by outcome and dataset",
		}, []string{"outcome", "dataset"}),
		RowsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscope_ingest_rows_applied_total",
			Help: "Rows written to dataset tables",
		}, []string{"dataset"}),
		AuthRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adscope_ingest_auth_rejections_total",
			Help: "Ingest requests rejected by the signature check",
		}, []string{"reason"}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adscope_import_runs_completed_total",
			Help: "Import runs that reached completed",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adscope_import_runs_failed_total",
			Help: "Import runs marked failed",
		}),
		IngestTxSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adscope_ingest_transaction_duration_seconds",
			Help:    "Time spent in the chunk acceptance transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
	}

	reg.MustRegister(
		m.ChunksTotal,
		m.RowsApplied,
		m.AuthRejections,
		m.RunsCompleted,
		m.RunsFailed,
		m.IngestTxSeconds,
	)
	return m
}
