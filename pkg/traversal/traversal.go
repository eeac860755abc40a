// Package traversal walks a loaded lineage graph breadth-first from a set of
// roots and records, for every reached node, how and when it was first
// reached.
package traversal

import (
	"math"
	"slices"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// Options bounds a traversal.
type Options struct {
	MaxDepth int
	// MinConfidence skips edges whose confidence is below it.
	MinConfidence float64
}

// Visit records the first time a pass reached a node.
type Visit struct {
	NodeID    lineage.NodeID    `json:"nodeId"`
	Direction lineage.Direction `json:"direction"`
	Distance  int               `json:"distance"`
	// IncomingEdge is the edge that first reached the node; nil for roots.
	IncomingEdge *lineage.Edge `json:"incomingEdge,omitempty"`
	// VisitOrder is unique and increasing across all passes of a Result.
	VisitOrder int `json:"visitOrder"`
}

// IsRoot reports whether the visit is a root of its pass.
func (v Visit) IsRoot() bool {
	return v.IncomingEdge == nil
}

// Pass is one single-direction BFS.
type Pass struct {
	Direction lineage.Direction
	Visits    []Visit        // in visit order
	Edges     []lineage.Edge // edges followed between visited nodes, self-loops included

	index map[lineage.NodeID]int
}

// Visit returns the visit of id in this pass.
func (p *Pass) Visit(id lineage.NodeID) (Visit, bool) {
	i, ok := p.index[id]
	if !ok {
		return Visit{}, false
	}
	return p.Visits[i], true
}

// Visited reports whether the pass reached id.
func (p *Pass) Visited(id lineage.NodeID) bool {
	_, ok := p.index[id]
	return ok
}

// Len returns the number of visited nodes.
func (p *Pass) Len() int {
	return len(p.Visits)
}

// Path returns the canonical path to id: the chain of incoming edges from
// its root, ordered root first. It is empty for roots and unvisited ids.
func (p *Pass) Path(id lineage.NodeID) []lineage.Edge {
	var path []lineage.Edge
	for {
		v, ok := p.Visit(id)
		if !ok || v.IncomingEdge == nil {
			break
		}
		path = append(path, *v.IncomingEdge)
		id = v.IncomingEdge.Near(p.Direction)
	}
	slices.Reverse(path)
	return path
}

// Result holds one pass per direction, downstream first.
type Result struct {
	Roots        []lineage.NodeID
	MissingRoots []lineage.NodeID // requested roots absent from the graph
	MaxDepth     int
	Passes       []*Pass
}

// Pass returns the pass for d, or nil.
func (r *Result) Pass(d lineage.Direction) *Pass {
	for _, p := range r.Passes {
		if p.Direction == d {
			return p
		}
	}
	return nil
}

// Distance returns the smallest distance of id across passes.
func (r *Result) Distance(id lineage.NodeID) (int, bool) {
	best, found := 0, false
	for _, p := range r.Passes {
		if v, ok := p.Visit(id); ok && (!found || v.Distance < best) {
			best, found = v.Distance, true
		}
	}
	return best, found
}

// NodeIDs returns every node visited by any pass, ascending.
func (r *Result) NodeIDs() []lineage.NodeID {
	seen := make(map[lineage.NodeID]bool)
	var ids []lineage.NodeID
	for _, p := range r.Passes {
		for _, v := range p.Visits {
			if !seen[v.NodeID] {
				seen[v.NodeID] = true
				ids = append(ids, v.NodeID)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

// Edges returns the distinct edges followed by any pass.
func (r *Result) Edges() []lineage.Edge {
	seen := make(map[lineage.EdgeKey]bool)
	var edges []lineage.Edge
	for _, p := range r.Passes {
		for _, e := range p.Edges {
			if !seen[e.Key()] {
				seen[e.Key()] = true
				edges = append(edges, e)
			}
		}
	}
	slices.SortFunc(edges, lineage.CompareEdges)
	return edges
}

// Visits returns every visit of every pass ordered by VisitOrder.
func (r *Result) Visits() []Visit {
	var all []Visit
	for _, p := range r.Passes {
		all = append(all, p.Visits...)
	}
	slices.SortFunc(all, func(a, b Visit) int { return a.VisitOrder - b.VisitOrder })
	return all
}

// Traverse runs a BFS per pass of dir from roots over g.
//
// Roots are visited in ascending order. Within a level, a node's edges are
// examined by ascending (neighbor id, relationship type) and the ids first
// discovered in that level are visited in ascending order, so visit order
// and canonical paths depend only on the graph.
func Traverse(g *lineage.Graph, roots []lineage.NodeID, dir lineage.Direction, opts Options) (*Result, error) {
	if g == nil {
		return nil, lineage.InvalidConfig("traversal: graph is nil")
	}
	if !dir.Valid() {
		return nil, lineage.InvalidConfig("traversal: unknown direction %d", int(dir))
	}
	if opts.MaxDepth < 0 {
		return nil, lineage.InvalidConfig("traversal: maxDepth must be non-negative, got %d", opts.MaxDepth)
	}
	if math.IsNaN(opts.MinConfidence) || opts.MinConfidence < 0 || opts.MinConfidence > 1 {
		return nil, lineage.InvalidConfig("traversal: minConfidence %g outside [0, 1]", opts.MinConfidence)
	}

	res := &Result{MaxDepth: opts.MaxDepth}
	seen := make(map[lineage.NodeID]bool, len(roots))
	for _, id := range roots {
		if seen[id] {
			continue
		}
		seen[id] = true
		if g.HasNode(id) {
			res.Roots = append(res.Roots, id)
		} else {
			res.MissingRoots = append(res.MissingRoots, id)
		}
	}
	slices.Sort(res.Roots)
	slices.Sort(res.MissingRoots)

	order := 0
	for _, d := range dir.Passes() {
		res.Passes = append(res.Passes, walk(g, res.Roots, d, opts, &order))
	}
	return res, nil
}

func walk(g *lineage.Graph, roots []lineage.NodeID, d lineage.Direction, opts Options, order *int) *Pass {
	p := &Pass{Direction: d, index: make(map[lineage.NodeID]int)}

	visit := func(id lineage.NodeID, distance int, via *lineage.Edge) {
		p.index[id] = len(p.Visits)
		p.Visits = append(p.Visits, Visit{
			NodeID:       id,
			Direction:    d,
			Distance:     distance,
			IncomingEdge: via,
			VisitOrder:   *order,
		})
		*order++
	}

	level := slices.Clone(roots)
	for _, id := range level {
		visit(id, 0, nil)
	}

	for depth := 0; depth < opts.MaxDepth && len(level) > 0; depth++ {
		via := make(map[lineage.NodeID]*lineage.Edge)
		var discovered []lineage.NodeID

		for _, id := range level {
			for _, e := range g.Adjacent(id, d) {
				if e.Confidence < opts.MinConfidence {
					continue
				}
				far := e.Far(d)
				if p.Visited(far) {
					continue
				}
				if _, pending := via[far]; pending {
					continue
				}
				edge := e
				via[far] = &edge
				discovered = append(discovered, far)
			}
		}

		slices.Sort(discovered)
		for _, id := range discovered {
			visit(id, depth+1, via[id])
		}
		level = discovered
	}

	p.Edges = followedEdges(g, p, opts)
	return p
}

// followedEdges collects the edges leaving nodes the pass expanded whose far
// end was also visited.
func followedEdges(g *lineage.Graph, p *Pass, opts Options) []lineage.Edge {
	var edges []lineage.Edge
	for _, v := range p.Visits {
		if v.Distance >= opts.MaxDepth {
			continue
		}
		for _, e := range g.Adjacent(v.NodeID, p.Direction) {
			if e.Confidence >= opts.MinConfidence && p.Visited(e.Far(p.Direction)) {
				edges = append(edges, e)
			}
		}
	}
	slices.SortFunc(edges, lineage.CompareEdges)
	return edges
}
