// Package gaps flags nodes whose lineage is structurally missing relative to
// the entity types expected to participate in lineage.
package gaps

import "github.com/dd0wney/cluso-lineage/pkg/lineage"

// Reason explains a gap report.
type Reason string

const (
	// ReasonNone: the node's type is expected and it has lineage on both sides.
	ReasonNone Reason = "none"
	// ReasonNoEdges: the node's type is expected and it lacks edges on at
	// least one side.
	ReasonNoEdges Reason = "no_edges"
	// ReasonTypeNotExpected: gap detection does not apply to the node's type.
	ReasonTypeNotExpected Reason = "type_not_expected"
	// ReasonNotApplicable: the node could not be fetched.
	ReasonNotApplicable Reason = "not_applicable"
)

// Report is the gap classification of one node.
type Report struct {
	NodeID            lineage.NodeID `json:"nodeId"`
	TypeName          string         `json:"typeName"`
	MissingUpstream   bool           `json:"missingUpstream"`
	MissingDownstream bool           `json:"missingDownstream"`
	Reason            Reason         `json:"reason"`
}

// HasGap reports whether either side is missing.
func (r Report) HasGap() bool {
	return r.MissingUpstream || r.MissingDownstream
}

// DetectGaps classifies every node of g, in ascending id order.
//
// A side counts as missing when the node has no edges on it in the graph
// and the loader did not leave lineage on that side unexplored (see
// lineage.Graph.IsBoundary). This narrows the plain zero-edge rule on
// purpose: a side cut short by depth, node count, the deadline or
// cancellation says nothing about the catalog, so it is never flagged.
func DetectGaps(g *lineage.Graph, expectedTypes []string) []Report {
	if g == nil {
		return nil
	}

	expected := make(map[string]bool, len(expectedTypes))
	for _, t := range expectedTypes {
		expected[t] = true
	}

	nodes := g.Nodes()
	reports := make([]Report, 0, len(nodes))
	for _, n := range nodes {
		r := Report{NodeID: n.ID, TypeName: n.TypeName}
		switch {
		case n.Incomplete:
			r.Reason = ReasonNotApplicable
		case !expected[n.TypeName]:
			r.Reason = ReasonTypeNotExpected
		default:
			r.MissingUpstream = g.InDegree(n.ID) == 0 && !g.IsBoundary(n.ID, lineage.Upstream)
			r.MissingDownstream = g.OutDegree(n.ID) == 0 && !g.IsBoundary(n.ID, lineage.Downstream)
			r.Reason = ReasonNone
			if r.HasGap() {
				r.Reason = ReasonNoEdges
			}
		}
		reports = append(reports, r)
	}
	return reports
}

// Summary aggregates gap reports.
type Summary struct {
	Total             int            `json:"total"`
	WithGaps          int            `json:"withGaps"`
	MissingUpstream   int            `json:"missingUpstream"`
	MissingDownstream int            `json:"missingDownstream"`
	ByReason          map[Reason]int `json:"byReason"`
}

// Summarize counts reports per reason and side.
func Summarize(reports []Report) Summary {
	s := Summary{Total: len(reports), ByReason: make(map[Reason]int)}
	for _, r := range reports {
		s.ByReason[r.Reason]++
		if r.HasGap() {
			s.WithGaps++
		}
		if r.MissingUpstream {
			s.MissingUpstream++
		}
		if r.MissingDownstream {
			s.MissingDownstream++
		}
	}
	return s
}
