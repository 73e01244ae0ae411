// Package metrics exposes the Prometheus instruments used by the tooling
// around the index. The library core stays metric-free; callers observe
// from the outside.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VectorsIndexed tracks the occupancy of an index under construction.
	VectorsIndexed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flatgraph_vectors_indexed",
			Help: "Number of vectors inserted into the index",
		},
		[]string{"index"},
	)

	// InsertsTotal counts insert attempts by outcome.
	InsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatgraph_inserts_total",
			Help: "Total insert attempts",
		},
		[]string{"index", "outcome"}, // outcome: ok | full | error
	)

	// BuildDuration observes how long one full index construction takes.
	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatgraph_build_duration_seconds",
			Help:    "Wall time of index construction",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	// SearchDuration observes per-query latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flatgraph_search_duration_seconds",
			Help:    "Latency of top-k queries",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
)
