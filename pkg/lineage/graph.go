package lineage

import (
	"cmp"
	"slices"
)

// Graph is the in-memory lineage graph materialized for one analysis.
//
// Nodes and edges are only ever added. Edges are deduplicated by EdgeKey and
// a later edge with the same key overwrites the earlier one (last-fetched
// wins). Graph is not safe for concurrent writes; the loader serializes them.
type Graph struct {
	nodes    map[NodeID]*Node
	edges    map[EdgeKey]*Edge
	forward  map[NodeID][]*Edge // source -> edges
	backward map[NodeID][]*Edge // target -> edges

	// boundary records nodes whose catalog lineage in a direction may reach
	// beyond what the graph holds.
	boundary map[NodeID][2]bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeID]*Node),
		edges:    make(map[EdgeKey]*Edge),
		forward:  make(map[NodeID][]*Edge),
		backward: make(map[NodeID][]*Edge),
		boundary: make(map[NodeID][2]bool),
	}
}

// AddNode adds a node. It returns false and leaves the graph unchanged if a
// node with the same ID already exists.
func (g *Graph) AddNode(n Node) bool {
	if _, exists := g.nodes[n.ID]; exists {
		return false
	}
	node := n
	if n.Attributes != nil {
		node.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			node.Attributes[k] = v
		}
	}
	g.nodes[n.ID] = &node
	return true
}

// AddEdge merges an edge into the graph. It returns true when an existing
// edge with the same key was overwritten.
func (g *Graph) AddEdge(e Edge) bool {
	key := e.Key()
	if existing, ok := g.edges[key]; ok {
		*existing = e
		return true
	}
	edge := e
	g.edges[key] = &edge
	g.forward[e.Source] = append(g.forward[e.Source], &edge)
	g.backward[e.Target] = append(g.backward[e.Target], &edge)
	return false
}

// Node returns the node with the given ID.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodes[id]
	return ok
}

// IsIncomplete reports whether the node exists and is flagged incomplete.
func (g *Graph) IsIncomplete(id NodeID) bool {
	n, ok := g.nodes[id]
	return ok && n.Incomplete
}

// MarkIncomplete flags an existing node as incomplete. It returns false if
// the node is unknown.
func (g *Graph) MarkIncomplete(id NodeID) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Incomplete = true
	return true
}

// Edge returns the edge stored under key.
func (g *Graph) Edge(key EdgeKey) (Edge, bool) {
	e, ok := g.edges[key]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Outgoing returns the edges whose source is id, ordered by target then
// relationship type.
func (g *Graph) Outgoing(id NodeID) []Edge {
	return sortedEdges(g.forward[id], Downstream)
}

// Incoming returns the edges whose target is id, ordered by source then
// relationship type.
func (g *Graph) Incoming(id NodeID) []Edge {
	return sortedEdges(g.backward[id], Upstream)
}

// Adjacent returns the edges followed from id when walking in direction d.
func (g *Graph) Adjacent(id NodeID, d Direction) []Edge {
	if d == Upstream {
		return g.Incoming(id)
	}
	return g.Outgoing(id)
}

// OutDegree returns the number of forward edges of id.
func (g *Graph) OutDegree(id NodeID) int { return len(g.forward[id]) }

// InDegree returns the number of backward edges of id.
func (g *Graph) InDegree(id NodeID) int { return len(g.backward[id]) }

// MarkBoundary records that id may have catalog lineage in direction d that
// the graph does not hold, because it was not admitted or not fully fetched.
func (g *Graph) MarkBoundary(id NodeID, d Direction) {
	b := g.boundary[id]
	b[boundaryIndex(d)] = true
	g.boundary[id] = b
}

// IsBoundary reports whether MarkBoundary was called for id and d.
func (g *Graph) IsBoundary(id NodeID, d Direction) bool {
	return g.boundary[id][boundaryIndex(d)]
}

// NodeIDs returns all node IDs in ascending order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []Node {
	ids := g.NodeIDs()
	nodes := make([]Node, len(ids))
	for i, id := range ids {
		nodes[i] = *g.nodes[id]
	}
	return nodes
}

// Edges returns all edges ordered by source, target and relationship type.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, *e)
	}
	slices.SortFunc(edges, CompareEdges)
	return edges
}

// IncompleteNodeIDs returns the IDs of incomplete nodes in ascending order.
func (g *Graph) IncompleteNodeIDs() []NodeID {
	ids := make([]NodeID, 0)
	for id, n := range g.nodes {
		if n.Incomplete {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// CompareEdges orders edges by source, target and relationship type.
func CompareEdges(a, b Edge) int {
	return cmp.Or(
		cmp.Compare(a.Source, b.Source),
		cmp.Compare(a.Target, b.Target),
		cmp.Compare(a.RelationshipType, b.RelationshipType),
	)
}

func sortedEdges(in []*Edge, d Direction) []Edge {
	out := make([]Edge, len(in))
	for i, e := range in {
		out[i] = *e
	}
	slices.SortFunc(out, func(a, b Edge) int {
		return cmp.Or(
			cmp.Compare(a.Far(d), b.Far(d)),
			cmp.Compare(a.RelationshipType, b.RelationshipType),
		)
	})
	return out
}

func boundaryIndex(d Direction) int {
	if d == Upstream {
		return 1
	}
	return 0
}
