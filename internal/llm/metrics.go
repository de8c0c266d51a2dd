package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// breakerState mirrors gobreaker.State per breaker: 0 closed, 1 half-open, 2 open.
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reverie_llm_circuit_breaker_state",
			Help: "Circuit breaker state per provider call (0 closed, 1 half-open, 2 open).",
		},
		[]string{"breaker"},
	)

	retryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_llm_retry_attempts_total",
			Help: "Retried provider calls by operation.",
		},
		[]string{"op"},
	)

	embeddingCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reverie_embedding_cache_lookups_total",
			Help: "Embedding cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)
