package impact

import (
	"math"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// RiskLevel classifies a node's impact score.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskUnknown RiskLevel = "UNKNOWN" // node could not be fetched
)

// RiskThresholds are the lower bounds of the High and Medium bands.
type RiskThresholds struct {
	High   float64 `yaml:"high" json:"high"`
	Medium float64 `yaml:"medium" json:"medium"`
}

// DefaultThresholds returns High >= 0.7 and Medium >= 0.4.
func DefaultThresholds() RiskThresholds {
	return RiskThresholds{High: 0.7, Medium: 0.4}
}

// Validate checks 0 <= Medium <= High <= 1.
func (t RiskThresholds) Validate() error {
	if math.IsNaN(t.High) || math.IsNaN(t.Medium) || t.Medium < 0 || t.High > 1 || t.Medium > t.High {
		return lineage.InvalidConfig("risk thresholds must satisfy 0 <= medium (%g) <= high (%g) <= 1", t.Medium, t.High)
	}
	return nil
}

// Classify maps a score to its risk band.
func (t RiskThresholds) Classify(score float64) RiskLevel {
	switch {
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}
