package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_queries_total",
			Help: "Questions handled by mode, retrieval strategy and outcome.",
		},
		[]string{"mode", "strategy", "outcome"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reverie_stage_duration_seconds",
			Help:    "Latency of each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"stage"},
	)

	retrievedEntries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reverie_retrieved_entries",
			Help:    "Entries handed to the prompt per question.",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 25, 50, 100, 250},
		},
		[]string{"strategy"},
	)

	streamedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reverie_streamed_chunks_total",
			Help: "Answer deltas delivered to clients.",
		},
	)

	backfillEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_backfill_entries_total",
			Help: "Entries processed by embedding backfill by result.",
		},
		[]string{"result"},
	)
)
