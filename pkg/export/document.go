package export

import (
	"github.com/dd0wney/cluso-lineage/pkg/gaps"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// BuildDocument assembles the shared document from b. Nodes and edges come
// out in the graph's deterministic order; impact records follow visit order.
func BuildDocument(b Bundle) (*Document, error) {
	if b.Graph == nil {
		return nil, lineage.InvalidConfig("export: graph is required")
	}

	impactByNode := make(map[lineage.NodeID][]impact.Entry)
	if b.Impact != nil {
		for _, e := range b.Impact.Entries {
			impactByNode[e.NodeID] = append(impactByNode[e.NodeID], e)
		}
	}

	gapByNode := make(map[lineage.NodeID]gaps.Report, len(b.Gaps))
	for _, r := range b.Gaps {
		gapByNode[r.NodeID] = r
	}

	onPath := make(map[lineage.NodeID]bool)
	if b.CriticalPath != nil {
		for _, id := range b.CriticalPath.NodeIDs {
			onPath[id] = true
		}
	}

	doc := &Document{Truncated: b.Truncated}

	for _, n := range b.Graph.Nodes() {
		rec := NodeRecord{
			ID:          n.ID,
			TypeName:    n.TypeName,
			DisplayName: n.DisplayName,
			Attributes:  n.Attributes,
			Incomplete:  n.Incomplete,
		}
		for _, e := range impactByNode[n.ID] {
			rec.Impact = append(rec.Impact, ImpactRecord{
				Direction:      e.Direction.String(),
				Distance:       e.Distance,
				VisitOrder:     e.VisitOrder,
				Score:          e.Score,
				Risk:           e.Risk,
				Path:           pathNodeIDs(e),
				OnCriticalPath: b.CriticalPath != nil && b.CriticalPath.Direction == e.Direction && onPath[n.ID],
			})
		}
		if r, ok := gapByNode[n.ID]; ok {
			rec.Gap = &GapRecord{
				MissingUpstream:   r.MissingUpstream,
				MissingDownstream: r.MissingDownstream,
				Reason:            r.Reason,
			}
		}
		doc.Nodes = append(doc.Nodes, rec)
	}

	for _, e := range b.Graph.Edges() {
		doc.Edges = append(doc.Edges, edgeRecord(e))
	}

	if cp := b.CriticalPath; cp != nil {
		path := &PathRecord{
			Direction: cp.Direction.String(),
			NodeIDs:   cp.NodeIDs,
			Weight:    cp.Weight,
			EndScore:  cp.EndScore,
		}
		for _, e := range cp.Edges {
			path.Edges = append(path.Edges, edgeRecord(e))
		}
		doc.CriticalPath = path
	}

	return doc, nil
}

func edgeRecord(e lineage.Edge) EdgeRecord {
	return EdgeRecord{
		Source:           e.Source,
		Target:           e.Target,
		RelationshipType: e.RelationshipType,
		Confidence:       e.Confidence,
	}
}

// pathNodeIDs lists the canonical path of e, root first.
func pathNodeIDs(e impact.Entry) []lineage.NodeID {
	if len(e.ContributingPath) == 0 {
		return []lineage.NodeID{e.NodeID}
	}
	ids := []lineage.NodeID{e.ContributingPath[0].Near(e.Direction)}
	for _, edge := range e.ContributingPath {
		ids = append(ids, edge.Far(e.Direction))
	}
	return ids
}
