package metrics

import (
	"time"
)

// Registry methods are no-ops on a nil receiver so callers can leave
// metrics unset.

// Fetch operations
const (
	OpFetchEntity        = "fetch_entity"
	OpFetchRelationships = "fetch_relationships"
)

// RecordFetch records one logical catalog fetch (all of its attempts).
func (r *Registry) RecordFetch(operation, status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FetchesTotal.WithLabelValues(operation, status).Inc()
	r.FetchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetry records a retried fetch attempt.
func (r *Registry) RecordRetry(operation string) {
	if r == nil {
		return
	}
	r.FetchRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordCoalesced records a fetch served by another caller's request.
func (r *Registry) RecordCoalesced() {
	if r == nil {
		return
	}
	r.FetchesCoalesced.Inc()
}

// RecordIncomplete records a node degraded to incomplete.
func (r *Registry) RecordIncomplete() {
	if r == nil {
		return
	}
	r.IncompleteNodes.Inc()
}

// RecordMalformedEdge records a skipped malformed edge.
func (r *Registry) RecordMalformedEdge() {
	if r == nil {
		return
	}
	r.MalformedEdges.Inc()
}

// RecordAnalysis records a finished analysis.
func (r *Registry) RecordAnalysis(direction, status string, duration time.Duration, nodes, edges int) {
	if r == nil {
		return
	}
	r.AnalysesTotal.WithLabelValues(direction, status).Inc()
	r.AnalysisDuration.WithLabelValues(direction).Observe(duration.Seconds())
	r.AnalysisNodes.Observe(float64(nodes))
	r.AnalysisEdges.Observe(float64(edges))
}

// RecordTruncated records a truncated analysis; cause is one of
// "depth", "nodes", "deadline" or "cancelled".
func (r *Registry) RecordTruncated(cause string) {
	if r == nil {
		return
	}
	r.TruncatedTotal.WithLabelValues(cause).Inc()
}

// TrackInFlight increments the in-flight gauge and returns the decrement.
func (r *Registry) TrackInFlight() func() {
	if r == nil {
		return func() {}
	}
	r.AnalysesInFlight.Inc()
	return r.AnalysesInFlight.Dec
}
