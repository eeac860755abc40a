package impact

import (
	"cmp"
	"math"
	"slices"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// scoreEpsilon is the tolerance under which two weights tie.
const scoreEpsilon = 1e-12

// CriticalPath is the canonical path with the greatest cumulative impact.
type CriticalPath struct {
	Direction lineage.Direction `json:"direction"`
	NodeIDs   []lineage.NodeID  `json:"nodeIds"`
	Edges     []lineage.Edge    `json:"edges"`
	// Weight is the sum of the scores of the nodes the path reaches.
	Weight float64 `json:"weight"`
	// EndScore is the score of the last node.
	EndScore float64 `json:"endScore"`

	visitOrder int
}

// Len returns the number of edges.
func (c *CriticalPath) Len() int {
	return len(c.Edges)
}

// FindCriticalPath picks, among the contributing paths in report, the one
// with the highest cumulative weight. Ties go to the shorter path, then to
// the lexically smaller node-id sequence. Paths touching an incomplete node
// are not candidates. It returns nil when no non-root node qualifies.
//
// Weight accumulates along the path, so a longer path through moderate
// scores can beat a short path ending at the single highest-scored node.
// EndScore carries the last node's score for callers that rank by it.
func FindCriticalPath(report *Report) *CriticalPath {
	if report == nil {
		return nil
	}

	type key struct {
		id  lineage.NodeID
		dir lineage.Direction
	}
	entries := make(map[key]Entry, len(report.Entries))
	for _, e := range report.Entries {
		entries[key{e.NodeID, e.Direction}] = e
	}

	var best *CriticalPath
	for _, e := range report.Entries {
		if e.Root || e.Score == nil || len(e.ContributingPath) == 0 {
			continue
		}

		candidate := &CriticalPath{
			Direction:  e.Direction,
			Edges:      e.ContributingPath,
			NodeIDs:    []lineage.NodeID{e.ContributingPath[0].Near(e.Direction)},
			EndScore:   *e.Score,
			visitOrder: e.VisitOrder,
		}
		usable := true
		for _, edge := range e.ContributingPath {
			far := edge.Far(e.Direction)
			hop, ok := entries[key{far, e.Direction}]
			if !ok || hop.Score == nil {
				usable = false
				break
			}
			candidate.NodeIDs = append(candidate.NodeIDs, far)
			candidate.Weight += *hop.Score
		}
		if !usable {
			continue
		}
		if root, ok := entries[key{candidate.NodeIDs[0], e.Direction}]; !ok || root.Incomplete {
			continue
		}

		if best == nil || better(candidate, best) {
			best = candidate
		}
	}
	return best
}

func better(a, b *CriticalPath) bool {
	if math.Abs(a.Weight-b.Weight) > scoreEpsilon {
		return a.Weight > b.Weight
	}
	if a.Len() != b.Len() {
		return a.Len() < b.Len()
	}
	if c := slices.Compare(a.NodeIDs, b.NodeIDs); c != 0 {
		return c < 0
	}
	return cmp.Less(a.visitOrder, b.visitOrder)
}
