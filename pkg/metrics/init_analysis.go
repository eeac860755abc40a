package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initAnalysisMetrics() {
	r.AnalysesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_analyses_total",
			Help: "Total number of impact analyses by direction and outcome",
		},
		[]string{"direction", "status"},
	)

	r.AnalysisDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lineage_analysis_duration_seconds",
			Help:    "End-to-end impact analysis duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"direction"},
	)

	r.AnalysisNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lineage_analysis_nodes",
			Help:    "Number of nodes materialized per analysis",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
	)

	r.AnalysisEdges = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lineage_analysis_edges",
			Help:    "Number of edges materialized per analysis",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
	)

	r.TruncatedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "lineage_truncated_total",
			Help: "Analyses that returned a truncated result, by cause",
		},
		[]string{"cause"},
	)

	r.AnalysesInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "lineage_analyses_in_flight",
			Help: "Number of analyses currently running",
		},
	)
}
