package loader

import "github.com/dd0wney/cluso-lineage/pkg/lineage"

// Truncation causes reported in Result.TruncationCauses.
const (
	CauseDepth     = "depth"
	CauseNodes     = "nodes"
	CauseDeadline  = "deadline"
	CauseCancelled = "cancelled"
)

// Result is the outcome of one Load.
type Result struct {
	Graph *lineage.Graph

	// NotFoundRoots lists roots the catalog does not know, ascending.
	NotFoundRoots []lineage.NodeID

	// Warnings records skipped edges and dead ends, sorted.
	Warnings []string

	// Truncated is set when lineage known to exist was left out because of
	// the depth, node or time budget.
	Truncated        bool
	TruncationCauses []string

	Stats Stats
}

// Stats counts the catalog work done by one Load.
type Stats struct {
	EntityFetches        int // logical entity fetches issued
	RelationshipPages    int // relationship pages received
	Retries              int // retried attempts across all fetches
	Coalesced            int // fetches served by another caller's request
	MalformedEdges       int
	DroppedLowConfidence int
	MaxDepthReached      int
}
