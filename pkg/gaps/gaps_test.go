package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

func reportFor(t *testing.T, reports []Report, id lineage.NodeID) Report {
	t.Helper()
	for _, r := range reports {
		if r.NodeID == id {
			return r
		}
	}
	t.Fatalf("no gap report for %s", id)
	return Report{}
}

func TestDetectGaps_IsolatedTable(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "orders", TypeName: "Table"})

	reports := DetectGaps(g, []string{"Table"})
	require.Len(t, reports, 1)

	r := reports[0]
	assert.True(t, r.MissingUpstream)
	assert.True(t, r.MissingDownstream)
	assert.Equal(t, ReasonNoEdges, r.Reason)
}

func TestDetectGaps_Classification(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "src", TypeName: "Table"})
	g.AddNode(lineage.Node{ID: "mid", TypeName: "Table"})
	g.AddNode(lineage.Node{ID: "dash", TypeName: "Dashboard"})
	g.AddNode(lineage.Node{ID: "broken", TypeName: "Table", Incomplete: true})
	g.AddEdge(lineage.Edge{Source: "src", Target: "mid", RelationshipType: "feeds", Confidence: 1})
	g.AddEdge(lineage.Edge{Source: "mid", Target: "dash", RelationshipType: "feeds", Confidence: 1})

	reports := DetectGaps(g, []string{"Table"})

	tests := []struct {
		id         lineage.NodeID
		upstream   bool
		downstream bool
		reason     Reason
	}{
		{"broken", false, false, ReasonNotApplicable},
		{"dash", false, false, ReasonTypeNotExpected},
		{"mid", false, false, ReasonNone},
		{"src", true, false, ReasonNoEdges},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			r := reportFor(t, reports, tt.id)
			assert.Equal(t, tt.upstream, r.MissingUpstream, "missingUpstream")
			assert.Equal(t, tt.downstream, r.MissingDownstream, "missingDownstream")
			assert.Equal(t, tt.reason, r.Reason)
		})
	}

	ids := make([]lineage.NodeID, len(reports))
	for i, r := range reports {
		ids[i] = r.NodeID
	}
	assert.Equal(t, []lineage.NodeID{"broken", "dash", "mid", "src"}, ids)
}

func TestDetectGaps_BoundaryIsNotAGap(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "a", TypeName: "Table"})
	g.AddNode(lineage.Node{ID: "b", TypeName: "Table"})
	g.AddEdge(lineage.Edge{Source: "a", Target: "b", RelationshipType: "feeds", Confidence: 1})
	// b has downstream lineage beyond the depth budget.
	g.MarkBoundary("b", lineage.Downstream)

	reports := DetectGaps(g, []string{"Table"})

	b := reportFor(t, reports, "b")
	assert.False(t, b.MissingDownstream)
	assert.Equal(t, ReasonNone, b.Reason)

	a := reportFor(t, reports, "a")
	assert.True(t, a.MissingUpstream)
}

func TestDetectGaps_BoundaryOnlyCoversItsSide(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "orders", TypeName: "Table"})
	g.MarkBoundary("orders", lineage.Downstream)

	r := reportFor(t, DetectGaps(g, []string{"Table"}), "orders")
	assert.True(t, r.MissingUpstream)
	assert.False(t, r.MissingDownstream)
	assert.Equal(t, ReasonNoEdges, r.Reason)

	g.MarkBoundary("orders", lineage.Upstream)
	r = reportFor(t, DetectGaps(g, []string{"Table"}), "orders")
	assert.False(t, r.HasGap())
	assert.Equal(t, ReasonNone, r.Reason)
}

func TestDetectGaps_NoExpectedTypes(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "orders", TypeName: "Table"})

	reports := DetectGaps(g, nil)
	require.Len(t, reports, 1)
	assert.Equal(t, ReasonTypeNotExpected, reports[0].Reason)
	assert.False(t, reports[0].HasGap())

	assert.Nil(t, DetectGaps(nil, []string{"Table"}))
}

func TestDetectGaps_SelfLoopCountsBothSides(t *testing.T) {
	g := lineage.NewGraph()
	g.AddNode(lineage.Node{ID: "loop", TypeName: "Table"})
	g.AddEdge(lineage.Edge{Source: "loop", Target: "loop", RelationshipType: "refreshes", Confidence: 1})

	r := DetectGaps(g, []string{"Table"})[0]
	assert.False(t, r.HasGap())
}

func TestSummarize(t *testing.T) {
	reports := []Report{
		{NodeID: "a", MissingUpstream: true, MissingDownstream: true, Reason: ReasonNoEdges},
		{NodeID: "b", MissingUpstream: true, Reason: ReasonNoEdges},
		{NodeID: "c", Reason: ReasonNone},
		{NodeID: "d", Reason: ReasonNotApplicable},
	}

	s := Summarize(reports)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.WithGaps)
	assert.Equal(t, 2, s.MissingUpstream)
	assert.Equal(t, 1, s.MissingDownstream)
	assert.Equal(t, 2, s.ByReason[ReasonNoEdges])
	assert.Equal(t, 1, s.ByReason[ReasonNotApplicable])
}
