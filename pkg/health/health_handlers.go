package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessHandler returns an HTTP handler for readiness checks
func (hc *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, hc.CheckReadiness(r.Context()), false)
	}
}

// LivenessHandler returns an HTTP handler for liveness checks
func (hc *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, hc.CheckLiveness(r.Context()), true)
	}
}

// respond writes the response. Degraded is served as 200 only when
// tolerateDegraded is set; readiness is binary.
func respond(w http.ResponseWriter, response Response, tolerateDegraded bool) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case response.Status == StatusHealthy:
		w.WriteHeader(http.StatusOK)
	case response.Status == StatusDegraded && tolerateDegraded:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}
