package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initFetchMetrics() {
	r.FetchesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_fetches_total",
			Help: "Total number of catalog fetches by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	r.FetchDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lineage_fetch_duration_seconds",
			Help:    "Catalog fetch duration in seconds, retries included",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)

	r.FetchRetriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_fetch_retries_total",
			Help: "Total number of retried catalog fetch attempts",
		},
		[]string{"operation"},
	)

	r.FetchesCoalesced = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lineage_fetches_coalesced_total",
			Help: "Fetches answered by an in-flight or completed request for the same id",
		},
	)

	r.IncompleteNodes = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lineage_incomplete_nodes_total",
			Help: "Nodes flagged incomplete after exhausting fetch retries",
		},
	)

	r.MalformedEdges = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "lineage_malformed_edges_total",
			Help: "Edges skipped because they were malformed",
		},
	)
}
