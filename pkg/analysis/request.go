package analysis

import (
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/export"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/validation"
)

// DefaultMaxDepth is the depth used by NewRequest.
const DefaultMaxDepth = 5

// Request describes one analysis.
type Request struct {
	RootIDs   []lineage.NodeID  `json:"rootIds" validate:"required"`
	Direction lineage.Direction `json:"direction" validate:"lineage_direction"`
	MaxDepth  int               `json:"maxDepth" validate:"min=0,max=100"`

	DecayFactor         float64 `json:"decayFactor" validate:"gte=0,lte=1"`
	ConfidenceThreshold float64 `json:"confidenceThreshold" validate:"gte=0,lte=1"`

	ExpectedTypesForGaps []string `json:"expectedTypesForGaps" validate:"max=256,dive,required,max=128"`

	// ExportFormat selects an export rendered into Result.Export; empty
	// skips the export.
	ExportFormat string `json:"exportFormat,omitempty"`

	// Timeout bounds the analysis; zero uses Config.AnalysisTimeout.
	Timeout time.Duration `json:"timeout,omitempty" validate:"min=0"`
}

// NewRequest returns a downstream request for roots with the default depth
// and decay factor.
func NewRequest(roots ...lineage.NodeID) Request {
	return Request{
		RootIDs:     roots,
		Direction:   lineage.Downstream,
		MaxDepth:    DefaultMaxDepth,
		DecayFactor: impact.DefaultDecayFactor,
	}
}

// Validate checks the request. Errors wrap lineage.ErrInvalidConfig.
func (r Request) Validate() error {
	if err := validation.ValidateRootIDs(r.RootIDs); err != nil {
		return lineage.InvalidConfig("%v", err)
	}
	if err := validation.Struct(r); err != nil {
		return lineage.InvalidConfig("%v", err)
	}
	if _, err := r.format(); err != nil {
		return lineage.InvalidConfig("ExportFormat: %v", err)
	}
	return nil
}

func (r Request) format() (export.Format, error) {
	if r.ExportFormat == "" {
		return "", nil
	}
	return export.ParseFormat(r.ExportFormat)
}
