package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the lineage engine
type Registry struct {
	// Catalog fetch metrics
	FetchesTotal      *prometheus.CounterVec
	FetchDuration     *prometheus.HistogramVec
	FetchRetriesTotal *prometheus.CounterVec
	FetchesCoalesced  prometheus.Counter
	IncompleteNodes   prometheus.Counter
	MalformedEdges    prometheus.Counter

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	AnalysisNodes    prometheus.Histogram
	AnalysisEdges    prometheus.Histogram
	TruncatedTotal   *prometheus.CounterVec
	AnalysesInFlight prometheus.Gauge

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Each registry owns its prometheus.Registry, so tests can create as many as
// they need without duplicate-registration panics.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initFetchMetrics()
	r.initAnalysisMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
