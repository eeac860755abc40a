package analysis

import (
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/gaps"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/loader"
	"github.com/dd0wney/cluso-lineage/pkg/traversal"
)

// Result is the outcome of one analysis.
type Result struct {
	AnalysisID string            `json:"analysisId"`
	Direction  lineage.Direction `json:"direction"`

	Nodes []lineage.Node `json:"nodes"`
	Edges []lineage.Edge `json:"edges"`

	ImpactReport *impact.Report       `json:"impactReport"`
	CriticalPath *impact.CriticalPath `json:"criticalPath"`
	GapReport    []gaps.Report        `json:"gapReport"`
	GapSummary   gaps.Summary         `json:"gapSummary"`

	Truncated         bool             `json:"truncated"`
	TruncationCauses  []string         `json:"truncationCauses,omitempty"`
	IncompleteNodeIDs []lineage.NodeID `json:"incompleteNodeIds"`
	NotFoundRoots     []lineage.NodeID `json:"notFoundRoots,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`

	LoadStats loader.Stats  `json:"loadStats"`
	Duration  time.Duration `json:"duration"`

	// Export holds the rendered export when the request named a format.
	Export       []byte `json:"-"`
	ExportFormat string `json:"exportFormat,omitempty"`

	Graph     *lineage.Graph    `json:"-"`
	Traversal *traversal.Result `json:"-"`
}

// Status summarizes the outcome for logs and metrics.
func (r *Result) Status() string {
	switch {
	case len(r.NotFoundRoots) > 0:
		return StatusPartial
	case r.Truncated:
		return StatusTruncated
	default:
		return StatusOK
	}
}

// Analysis statuses.
const (
	StatusOK        = "ok"
	StatusTruncated = "truncated"
	StatusPartial   = "partial"
	StatusNotFound  = "not_found"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
)
