// Package metrics exposes Prometheus counters for the agent's extract
// and delivery path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsExtracted counts rows fetched from the relational source.
	// Labels: source (logical source name)
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_rows_extracted_total",
			Help: "Total number of rows extracted from the source database",
		},
		[]string{"source"},
	)

	// BatchesDelivered counts batches acknowledged by the sink.
	// Labels: source, origin (fresh/queued)
	BatchesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_batches_delivered_total",
			Help: "Total number of batches accepted by the sink",
		},
		[]string{"source", "origin"},
	)

	// BatchesFailed counts delivery attempts the sink did not accept.
	// Labels: source, origin (fresh/queued)
	BatchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_batches_failed_total",
			Help: "Total number of failed delivery attempts",
		},
		[]string{"source", "origin"},
	)

	// BatchesQueued counts batches diverted to the retry queue.
	BatchesQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_batches_queued_total",
			Help: "Total number of batches written to the retry queue",
		},
		[]string{"source"},
	)

	// BatchesDropped counts batches lost because the retry queue was full.
	BatchesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_batches_dropped_total",
			Help: "Total number of batches dropped because the retry queue was full",
		},
		[]string{"source"},
	)

	// QueueDepth tracks the retry queue file size in bytes.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skimmer_queue_bytes",
			Help: "Current size of the retry queue file in bytes",
		},
	)

	// CycleDuration tracks how long one full extraction cycle takes.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "skimmer_cycle_duration_seconds",
			Help: "Duration of one full extraction cycle in seconds",
			Buckets: []float64{
				0.01, // queue empty, nothing new
				0.1,
				0.5,
				1,
				5,
				30,
				120, // backoff sleeps included
			},
		},
	)
)
