// Package server exposes the lineage analysis engine over HTTP with graceful
// shutdown, health probes and Prometheus metrics.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/analysis"
	"github.com/dd0wney/cluso-lineage/pkg/export"
	"github.com/dd0wney/cluso-lineage/pkg/health"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
)

// Defaults for Options.
const (
	DefaultMaxBodyBytes  = 1 << 20
	DefaultMaxConcurrent = 64
)

// Options configures an API.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
	Health  *health.HealthChecker

	MaxBodyBytes int64
	// RateLimit is requests per second across all clients; zero disables it.
	RateLimit float64
	RateBurst int
	// TLS adds HSTS to responses.
	TLS bool
	// MaxConcurrent reports the service degraded beyond this many in-flight
	// analyses.
	MaxConcurrent int
}

// API serves analyses. The analyzer may be swapped at runtime, which is how
// configuration reloads take effect.
type API struct {
	analyzer atomic.Pointer[analysis.Analyzer]
	inFlight atomic.Int64

	logger  logging.Logger
	metrics *metrics.Registry
	health  *health.HealthChecker
	opts    Options
}

// NewAPI creates an API around a.
func NewAPI(a *analysis.Analyzer, opts Options) (*API, error) {
	if a == nil {
		return nil, lineage.InvalidConfig("server: analyzer is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Health == nil {
		opts.Health = health.NewHealthChecker()
	}

	api := &API{
		logger:  logging.OrNop(opts.Logger).With(logging.Component("api")),
		metrics: opts.Metrics,
		health:  opts.Health,
		opts:    opts,
	}
	api.analyzer.Store(a)
	api.health.RegisterLivenessCheck("process", health.SimpleCheck())
	api.health.RegisterReadinessCheck("analyses", health.InFlightCheck(api.InFlight, opts.MaxConcurrent))
	return api, nil
}

// SetAnalyzer replaces the analyzer used by new requests.
func (api *API) SetAnalyzer(a *analysis.Analyzer) {
	if a != nil {
		api.analyzer.Store(a)
	}
}

// Analyzer returns the current analyzer.
func (api *API) Analyzer() *analysis.Analyzer {
	return api.analyzer.Load()
}

// InFlight returns the number of analyses being served.
func (api *API) InFlight() int {
	return int(api.inFlight.Load())
}

// Handler returns the routed handler with middleware applied.
func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyses", api.handleAnalyze)
	mux.HandleFunc("GET /v1/formats", api.handleFormats)
	mux.HandleFunc("GET /health", api.health.LivenessHandler())
	mux.HandleFunc("GET /health/live", api.health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", api.health.ReadinessHandler())
	if api.metrics != nil {
		mux.Handle("GET /metrics", api.metrics.Handler())
	}

	return Chain(mux,
		RequestID(),
		Logging(api.logger),
		SecurityHeaders(api.opts.TLS),
		PanicRecovery(api.logger),
		RateLimit(api.opts.RateLimit, api.opts.RateBurst),
		BodySizeLimit(api.opts.MaxBodyBytes),
	)
}

// AnalyzeRequest is the JSON body of POST /v1/analyses. Omitted numeric
// fields take the service defaults.
type AnalyzeRequest struct {
	RootIDs              []lineage.NodeID  `json:"rootIds"`
	Direction            lineage.Direction `json:"direction"`
	MaxDepth             *int              `json:"maxDepth,omitempty"`
	DecayFactor          *float64          `json:"decayFactor,omitempty"`
	ConfidenceThreshold  float64           `json:"confidenceThreshold,omitempty"`
	ExpectedTypesForGaps []string          `json:"expectedTypesForGaps,omitempty"`
	Format               string            `json:"format,omitempty"`
	Timeout              string            `json:"timeout,omitempty"`
}

// ToRequest converts the body into an analysis request.
func (r AnalyzeRequest) ToRequest(cfg analysis.Config) (analysis.Request, error) {
	req := analysis.NewRequest(r.RootIDs...)
	req.Direction = r.Direction
	req.DecayFactor = cfg.DefaultDecayFactor
	if r.MaxDepth != nil {
		req.MaxDepth = *r.MaxDepth
	}
	if r.DecayFactor != nil {
		req.DecayFactor = *r.DecayFactor
	}
	req.ConfidenceThreshold = r.ConfidenceThreshold
	req.ExpectedTypesForGaps = r.ExpectedTypesForGaps
	req.ExportFormat = r.Format
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return req, lineage.InvalidConfig("timeout: %v", err)
		}
		req.Timeout = d
	}
	return req, nil
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Code    int              `json:"code"`
	Missing []lineage.NodeID `json:"missingRoots,omitempty"`
}

// FormatInfo describes one export format.
type FormatInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
	Extension   string `json:"extension"`
}

func (api *API) handleFormats(w http.ResponseWriter, r *http.Request) {
	formats := export.Formats()
	out := make([]FormatInfo, 0, len(formats))
	for _, f := range formats {
		out = append(out, FormatInfo{
			Name:        string(f),
			Kind:        string(f.Kind()),
			ContentType: f.ContentType(),
			Extension:   f.Extension(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (api *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	api.inFlight.Add(1)
	defer api.inFlight.Add(-1)

	var body AnalyzeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	a := api.Analyzer()
	req, err := body.ToRequest(a.Config())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := a.Analyze(r.Context(), req)

	var notFound *lineage.RootNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound) && res != nil:
		// Partial results are still a success; the missing roots are in the body.
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
			Code:    http.StatusNotFound,
			Missing: notFound.IDs,
		})
		return
	case errors.Is(err, lineage.ErrInvalidConfig):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	default:
		api.logger.Error("analysis failed",
			logging.String("request_id", GetRequestID(r.Context())),
			logging.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "analysis_failed", "Analysis failed")
		return
	}

	w.Header().Set("X-Analysis-ID", res.AnalysisID)
	w.Header().Set("X-Analysis-Status", res.Status())

	if res.ExportFormat == "" {
		respondJSON(w, http.StatusOK, res)
		return
	}

	f := export.Format(res.ExportFormat)
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "lineage-"+res.AnalysisID+"."+f.Extension()))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Export)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
