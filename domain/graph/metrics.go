package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// txDuration tracks transaction scope latency by operation and outcome
	txDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_transaction_duration_seconds",
		Help:    "Graph transaction scope duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"op", "mode", "outcome"})

	// degradedReads counts read scopes that failed and returned an empty default
	degradedReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_degraded_reads_total",
		Help: "Read scopes that failed and returned an empty default",
	}, []string{"op"})

	// cacheLookups counts attribute cache lookups by result
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_attribute_cache_lookups_total",
		Help: "Attribute cache lookups by result",
	}, []string{"result"}) // "hit", "miss" or "error"

	// inferenceReconstructions counts rebuilt inferred relations
	inferenceReconstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_inference_reconstructions_total",
		Help: "Inferred relations rebuilt from explanations",
	}, []string{"result"})
)
