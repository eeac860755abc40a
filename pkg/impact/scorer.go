// Package impact scores the nodes reached by a traversal and selects the
// critical path among their canonical paths.
package impact

import (
	"math"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/traversal"
)

// DefaultDecayFactor is the per-hop attenuation.
const DefaultDecayFactor = 0.9

// Options configures scoring.
type Options struct {
	DecayFactor float64
	// ConfidenceThreshold must match the threshold the graph was loaded and
	// traversed with; Score rejects canonical paths that violate it.
	ConfidenceThreshold float64
	Thresholds          RiskThresholds
}

// DefaultOptions returns decay 0.9, no confidence threshold and the default
// risk bands.
func DefaultOptions() Options {
	return Options{
		DecayFactor: DefaultDecayFactor,
		Thresholds:  DefaultThresholds(),
	}
}

// Validate checks the options. Errors wrap lineage.ErrInvalidConfig.
func (o Options) Validate() error {
	if math.IsNaN(o.DecayFactor) || o.DecayFactor < 0 || o.DecayFactor > 1 {
		return lineage.InvalidConfig("decay factor %g outside [0, 1]", o.DecayFactor)
	}
	if math.IsNaN(o.ConfidenceThreshold) || o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		return lineage.InvalidConfig("confidence threshold %g outside [0, 1]", o.ConfidenceThreshold)
	}
	return o.Thresholds.Validate()
}

// Entry is the impact of one node in one direction pass.
type Entry struct {
	NodeID     lineage.NodeID    `json:"nodeId"`
	Direction  lineage.Direction `json:"direction"`
	Distance   int               `json:"distance"`
	VisitOrder int               `json:"visitOrder"`
	Root       bool              `json:"root,omitempty"`
	Incomplete bool              `json:"incomplete,omitempty"`

	// Score is nil for incomplete nodes.
	Score *float64  `json:"score"`
	Risk  RiskLevel `json:"risk"`

	// ContributingPath is the canonical path from the root, root first.
	ContributingPath []lineage.Edge `json:"contributingPath"`
}

// Report holds one Entry per visited (node, direction) ordered by visit
// order. A node reached by both passes of a Both traversal has two entries.
type Report struct {
	Entries     []Entry        `json:"entries"`
	DecayFactor float64        `json:"decayFactor"`
	Thresholds  RiskThresholds `json:"thresholds"`
}

// Entry returns the entry for id in direction d.
func (r *Report) Entry(id lineage.NodeID, d lineage.Direction) (Entry, bool) {
	for _, e := range r.Entries {
		if e.NodeID == id && e.Direction == d {
			return e, true
		}
	}
	return Entry{}, false
}

// ForNode returns every entry of id.
func (r *Report) ForNode(id lineage.NodeID) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.NodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// CountByRisk tallies entries per risk level.
func (r *Report) CountByRisk() map[RiskLevel]int {
	counts := make(map[RiskLevel]int)
	for _, e := range r.Entries {
		counts[e.Risk]++
	}
	return counts
}

// Score computes the impact of every visit in tr.
//
// A root scores 1. Any other node scores the product, along its canonical
// path, of DecayFactor times the edge confidence, so it never exceeds
// DecayFactor^distance. Incomplete nodes get a nil score and RiskUnknown.
func Score(g *lineage.Graph, tr *traversal.Result, opts Options) (*Report, error) {
	if g == nil || tr == nil {
		return nil, lineage.InvalidConfig("impact: graph and traversal result are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	report := &Report{DecayFactor: opts.DecayFactor, Thresholds: opts.Thresholds}
	for _, v := range tr.Visits() {
		pass := tr.Pass(v.Direction)
		path := pass.Path(v.NodeID)

		entry := Entry{
			NodeID:           v.NodeID,
			Direction:        v.Direction,
			Distance:         v.Distance,
			VisitOrder:       v.VisitOrder,
			Root:             v.IsRoot(),
			Incomplete:       g.IsIncomplete(v.NodeID),
			ContributingPath: path,
		}

		score := 1.0
		for _, e := range path {
			if e.Confidence < opts.ConfidenceThreshold {
				return nil, lineage.InvalidConfig(
					"canonical path to %s uses edge %s below confidence threshold %g",
					v.NodeID, e, opts.ConfidenceThreshold)
			}
			score *= opts.DecayFactor * e.Confidence
		}

		if entry.Incomplete {
			entry.Risk = RiskUnknown
		} else {
			entry.Score = &score
			entry.Risk = opts.Thresholds.Classify(score)
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}
