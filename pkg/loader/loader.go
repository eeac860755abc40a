// Package loader materializes the lineage graph for an analysis by walking a
// catalog.Gateway outward from the roots, level by level.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/parallel"
)

// Loader builds lineage graphs from a catalog. A Loader holds no per-call
// state and may serve concurrent Loads.
type Loader struct {
	gateway catalog.Gateway
	opts    Options
	logger  logging.Logger
}

// New creates a Loader. Zero-valued MaxParallelFetches and RetryMultiplier
// take their defaults.
func New(gateway catalog.Gateway, opts Options) (*Loader, error) {
	if gateway == nil {
		return nil, lineage.InvalidConfig("loader: gateway is required")
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Loader{
		gateway: gateway,
		opts:    opts,
		logger:  opts.Logger.With(logging.Component("loader")),
	}, nil
}

// Options returns the effective options.
func (l *Loader) Options() Options {
	return l.opts
}

// Load fetches every node within maxDepth hops of roots in direction dir.
//
// Cancellation or an expired deadline on ctx is not an error: Load stops
// issuing fetches and returns the partial graph with Truncated set. Only
// invalid arguments produce an error.
func (l *Loader) Load(ctx context.Context, roots []lineage.NodeID, dir lineage.Direction, maxDepth int) (*Result, error) {
	if !dir.Valid() {
		return nil, lineage.InvalidConfig("unknown direction %d", int(dir))
	}
	if maxDepth < 0 {
		return nil, lineage.InvalidConfig("maxDepth must be non-negative, got %d", maxDepth)
	}
	if len(roots) == 0 {
		return nil, lineage.InvalidConfig("at least one root id is required")
	}

	pool, err := parallel.NewWorkerPool(l.opts.MaxParallelFetches, l.logger)
	if err != nil {
		return nil, lineage.InvalidConfig("%v", err)
	}
	defer pool.Close()

	r := newRun(ctx, l, pool, roots)

	passes := dir.Passes()
	pending := make([][]pendingEdge, len(passes))
	if len(passes) == 1 {
		pending[0] = r.walk(passes[0], maxDepth)
	} else {
		var wg sync.WaitGroup
		for i, d := range passes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pending[i] = r.walk(d, maxDepth)
			}()
		}
		wg.Wait()
	}

	r.merge(pending)
	return r.result(), nil
}

// pendingEdge is an accepted edge waiting for the final merge. Edges are
// merged only after loading so that an edge whose far end turns out to be
// missing never enters the graph.
type pendingEdge struct {
	edge lineage.Edge
	near lineage.NodeID
	dir  lineage.Direction
}

type expansion struct {
	id    lineage.NodeID
	edges []lineage.Edge
}

type entityResult struct {
	node *lineage.Node
	err  error
}

type relKey struct {
	id  lineage.NodeID
	dir lineage.Direction
}

type relResult struct {
	edges []lineage.Edge
	err   error
}

// run is the state of one Load call.
type run struct {
	ctx     context.Context
	gateway catalog.Gateway
	opts    Options
	logger  logging.Logger
	pool    *parallel.WorkerPool
	flight  singleflight.Group

	roots  []lineage.NodeID
	isRoot map[lineage.NodeID]bool

	mu            sync.Mutex
	graph         *lineage.Graph
	entities      map[lineage.NodeID]entityResult
	relations     map[relKey]relResult
	admitted      map[lineage.NodeID]bool
	rejected      map[lineage.NodeID]bool
	notFound      map[lineage.NodeID]bool
	notFoundRoots map[lineage.NodeID]bool
	incomplete    map[lineage.NodeID]bool
	beyondDepth   map[lineage.NodeID]bool
	warnings      []string
	causes        map[string]bool
	stats         Stats
}

func newRun(ctx context.Context, l *Loader, pool *parallel.WorkerPool, roots []lineage.NodeID) *run {
	r := &run{
		ctx:           ctx,
		gateway:       l.gateway,
		opts:          l.opts,
		logger:        l.logger,
		pool:          pool,
		isRoot:        make(map[lineage.NodeID]bool, len(roots)),
		graph:         lineage.NewGraph(),
		entities:      make(map[lineage.NodeID]entityResult),
		relations:     make(map[relKey]relResult),
		admitted:      make(map[lineage.NodeID]bool),
		rejected:      make(map[lineage.NodeID]bool),
		notFound:      make(map[lineage.NodeID]bool),
		notFoundRoots: make(map[lineage.NodeID]bool),
		incomplete:    make(map[lineage.NodeID]bool),
		beyondDepth:   make(map[lineage.NodeID]bool),
		causes:        make(map[string]bool),
	}
	for _, id := range roots {
		if r.isRoot[id] {
			continue
		}
		r.isRoot[id] = true
		r.admitted[id] = true
		r.roots = append(r.roots, id)
	}
	slices.Sort(r.roots)
	return r
}

// walk runs the frontier for one direction and returns the accepted edges
// in the order they were fetched.
func (r *run) walk(d lineage.Direction, maxDepth int) []pendingEdge {
	logger := r.logger.With(logging.Direction(d))

	seen := make(map[lineage.NodeID]bool, len(r.roots))
	frontier := slices.Clone(r.roots)
	for _, id := range frontier {
		seen[id] = true
	}

	var pending []pendingEdge
	for depth := 0; len(frontier) > 0; depth++ {
		if r.stopped() {
			r.markUnexplored(frontier, d)
			break
		}
		r.reachedDepth(depth)

		expansions := make([]expansion, len(frontier))
		batch := r.pool.NewBatch()
		for i, id := range frontier {
			batch.Submit(func() {
				expansions[i] = r.expand(id, d)
			})
		}
		batch.Wait()

		var next []lineage.NodeID
		for _, x := range expansions {
			for _, e := range x.edges {
				pending = append(pending, pendingEdge{edge: e, near: x.id, dir: d})

				far := e.Far(d)
				if seen[far] {
					continue
				}
				if depth+1 > maxDepth {
					r.markBeyondDepth(far)
					continue
				}
				if !r.admit(far) {
					continue
				}
				seen[far] = true
				next = append(next, far)
			}
		}
		slices.Sort(next)

		logger.Debug("level expanded", logging.Depth(depth), logging.Count(len(frontier)), logging.Int("discovered", len(next)))
		frontier = next
	}
	return pending
}

// expand fetches one node and its relationships in direction d.
func (r *run) expand(id lineage.NodeID, d lineage.Direction) expansion {
	x := expansion{id: id}

	node, err := r.entity(id)
	switch {
	case err == nil:
	case lineage.IsNotFound(err):
		r.recordNotFound(id)
		return x
	case r.cancelled(err):
		return x
	default:
		r.markIncomplete(id, "entity", err)
		return x
	}
	r.addNode(id, node)

	edges, err := r.relationships(id, d)
	switch {
	case err == nil:
	case r.cancelled(err):
		// Keep the pages that arrived before cancellation, but the rest of
		// this side is unknown.
		r.markUnexplored([]lineage.NodeID{id}, d)
	default:
		r.markIncomplete(id, "relationships", err)
		return x
	}
	x.edges = edges
	return x
}

func (r *run) entity(id lineage.NodeID) (*lineage.Node, error) {
	r.mu.Lock()
	if res, ok := r.entities[id]; ok {
		r.stats.Coalesced++
		r.mu.Unlock()
		r.opts.Metrics.RecordCoalesced()
		return res.node, res.err
	}
	r.mu.Unlock()

	leader := false
	v, err, _ := r.flight.Do("entity:"+string(id), func() (any, error) {
		r.mu.Lock()
		if res, ok := r.entities[id]; ok {
			r.mu.Unlock()
			return res.node, res.err
		}
		r.stats.EntityFetches++
		r.mu.Unlock()

		leader = true
		node, err := retryFetch(r, metricsOpEntity, id, func(ctx context.Context) (*lineage.Node, error) {
			return r.gateway.FetchEntity(ctx, id)
		})
		if err == nil && node == nil {
			err = lineage.NewError("FetchEntity", id, errors.New("catalog returned no entity"))
		}

		r.mu.Lock()
		r.entities[id] = entityResult{node: node, err: err}
		r.mu.Unlock()
		return node, err
	})
	if !leader {
		r.mu.Lock()
		r.stats.Coalesced++
		r.mu.Unlock()
		r.opts.Metrics.RecordCoalesced()
	}
	node, _ := v.(*lineage.Node)
	return node, err
}

func (r *run) relationships(id lineage.NodeID, d lineage.Direction) ([]lineage.Edge, error) {
	key := relKey{id: id, dir: d}

	r.mu.Lock()
	if res, ok := r.relations[key]; ok {
		r.mu.Unlock()
		return res.edges, res.err
	}
	r.mu.Unlock()

	v, err, _ := r.flight.Do(fmt.Sprintf("rel:%s:%s", d, id), func() (any, error) {
		edges, err := r.fetchAllPages(id, d)
		r.mu.Lock()
		r.relations[key] = relResult{edges: edges, err: err}
		r.mu.Unlock()
		return edges, err
	})
	edges, _ := v.([]lineage.Edge)
	return edges, err
}

func (r *run) fetchAllPages(id lineage.NodeID, d lineage.Direction) ([]lineage.Edge, error) {
	var (
		edges   []lineage.Edge
		cursor  string
		cursors = make(map[string]bool)
	)
	for {
		page, err := retryFetch(r, metricsOpRelationships, id, func(ctx context.Context) (*catalog.RelationshipPage, error) {
			return r.gateway.FetchRelationships(ctx, id, d, cursor)
		})
		if err != nil {
			return edges, err
		}
		if page == nil {
			return edges, nil
		}

		r.mu.Lock()
		r.stats.RelationshipPages++
		r.mu.Unlock()

		for _, raw := range page.Edges {
			if e, ok := r.normalize(id, d, raw); ok {
				edges = append(edges, e)
			}
		}

		if page.NextCursor == "" {
			return edges, nil
		}
		if cursors[page.NextCursor] {
			return edges, lineage.NewError("FetchRelationships", id, fmt.Errorf("catalog repeated cursor %q", page.NextCursor))
		}
		cursors[page.NextCursor] = true
		cursor = page.NextCursor
	}
}

// admit reserves a slot for far under the node budget.
func (r *run) admit(far lineage.NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admitted[far] {
		return true
	}
	if r.opts.MaxNodes > 0 && len(r.admitted) >= r.opts.MaxNodes {
		r.rejected[far] = true
		r.truncateLocked(CauseNodes)
		return false
	}
	r.admitted[far] = true
	return true
}

func (r *run) addNode(id lineage.NodeID, n *lineage.Node) {
	node := *n
	node.ID = id
	node.Incomplete = false

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.AddNode(node)
}

func (r *run) markIncomplete(id lineage.NodeID, what string, cause error) {
	r.mu.Lock()
	if !r.graph.MarkIncomplete(id) {
		r.graph.AddNode(lineage.Node{ID: id, Incomplete: true})
	}
	first := !r.incomplete[id]
	r.incomplete[id] = true
	r.mu.Unlock()

	if first {
		r.opts.Metrics.RecordIncomplete()
		r.logger.Warn("node marked incomplete",
			logging.NodeID(id),
			logging.Operation(what),
			logging.Error(cause))
	}
}

// markUnexplored flags side d of ids as cut short, so an empty side is not
// mistaken for missing lineage.
func (r *run) markUnexplored(ids []lineage.NodeID, d lineage.Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.graph.MarkBoundary(id, d)
	}
}

func (r *run) markBeyondDepth(id lineage.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beyondDepth[id] = true
}

func (r *run) recordNotFound(id lineage.NodeID) {
	r.mu.Lock()
	first := !r.notFound[id]
	r.notFound[id] = true
	if r.isRoot[id] {
		r.notFoundRoots[id] = true
	}
	r.mu.Unlock()

	if first && !r.isRoot[id] {
		r.warn("entity %s not found in catalog; treated as a dead end", id)
	}
}

// merge adds pending edges whose endpoints are both in the graph. Passes
// merge in order (downstream before upstream), so on duplicate keys the
// last edge fetched within that order wins.
func (r *run) merge(pending [][]pendingEdge) {
	for _, list := range pending {
		for _, p := range list {
			far := p.edge.Far(p.dir)
			if r.graph.HasNode(far) {
				r.graph.AddEdge(p.edge)
				continue
			}
			if r.notFound[far] {
				r.warn("dropped edge %s: %s does not exist in the catalog", p.edge, far)
				continue
			}
			r.graph.MarkBoundary(p.near, p.dir)
			if r.beyondDepth[far] && !r.rejected[far] {
				r.truncate(CauseDepth)
			}
		}
	}
}

func (r *run) result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &Result{
		Graph:    r.graph,
		Warnings: slices.Clone(r.warnings),
		Stats:    r.stats,
	}
	for id := range r.notFoundRoots {
		res.NotFoundRoots = append(res.NotFoundRoots, id)
	}
	slices.Sort(res.NotFoundRoots)
	sort.Strings(res.Warnings)

	for cause := range r.causes {
		res.TruncationCauses = append(res.TruncationCauses, cause)
	}
	sort.Strings(res.TruncationCauses)
	res.Truncated = len(res.TruncationCauses) > 0
	return res
}

func (r *run) reachedDepth(depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.MaxDepthReached = max(r.stats.MaxDepthReached, depth)
}

// stopped reports whether the analysis context is done, recording the
// truncation cause if so.
func (r *run) stopped() bool {
	err := r.ctx.Err()
	if err == nil {
		return false
	}
	r.truncate(causeOf(err))
	return true
}

// cancelled reports whether err stems from the analysis context ending.
func (r *run) cancelled(err error) bool {
	ctxErr := r.ctx.Err()
	if ctxErr == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.truncate(causeOf(ctxErr))
		return true
	}
	return false
}

func (r *run) truncate(cause string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.truncateLocked(cause)
}

func (r *run) truncateLocked(cause string) {
	if r.causes[cause] {
		return
	}
	r.causes[cause] = true
	r.opts.Metrics.RecordTruncated(cause)
	r.logger.Info("lineage truncated", logging.String("cause", cause))
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
	r.logger.Warn(msg)
}

func causeOf(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return CauseDeadline
	}
	return CauseCancelled
}
