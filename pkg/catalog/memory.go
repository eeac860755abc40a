package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// MemoryGateway serves a catalog held in memory. It paginates relationships
// and can inject transient failures, which makes it the gateway of choice for
// tests and offline CLI runs.
type MemoryGateway struct {
	mu       sync.Mutex
	entities map[lineage.NodeID]lineage.Node
	outgoing map[lineage.NodeID][]RawEdge
	incoming map[lineage.NodeID][]RawEdge

	pageSize int
	latency  time.Duration

	entityFailures map[lineage.NodeID]int
	relFailures    map[lineage.NodeID]int
	entityCalls    map[lineage.NodeID]int
	relCalls       map[lineage.NodeID]int
	cursorsSeen    []string
}

// MemoryOption configures a MemoryGateway.
type MemoryOption func(*MemoryGateway)

// WithPageSize sets how many edges a relationship page holds (default 50).
func WithPageSize(n int) MemoryOption {
	return func(m *MemoryGateway) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithLatency delays every call, honoring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(m *MemoryGateway) {
		m.latency = d
	}
}

// NewMemoryGateway creates an empty in-memory catalog.
func NewMemoryGateway(opts ...MemoryOption) *MemoryGateway {
	m := &MemoryGateway{
		entities:       make(map[lineage.NodeID]lineage.Node),
		outgoing:       make(map[lineage.NodeID][]RawEdge),
		incoming:       make(map[lineage.NodeID][]RawEdge),
		pageSize:       50,
		entityFailures: make(map[lineage.NodeID]int),
		relFailures:    make(map[lineage.NodeID]int),
		entityCalls:    make(map[lineage.NodeID]int),
		relCalls:       make(map[lineage.NodeID]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryGatewayFromFixture creates a gateway pre-populated from f.
func NewMemoryGatewayFromFixture(f *Fixture, opts ...MemoryOption) *MemoryGateway {
	m := NewMemoryGateway(opts...)
	for _, e := range f.Entities {
		m.AddEntity(e)
	}
	for _, r := range f.Relationships {
		m.AddRelationship(r)
	}
	return m
}

// AddEntity registers or replaces an entity.
func (m *MemoryGateway) AddEntity(n lineage.Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[n.ID] = n
}

// AddRelationship registers an edge under its source (downstream pages) and
// its target (upstream pages). Edges with a blank endpoint are still served
// from the side that is present.
func (m *MemoryGateway) AddRelationship(e RawEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Source != "" {
		m.outgoing[e.Source] = append(m.outgoing[e.Source], e)
	}
	if e.Target != "" {
		m.incoming[e.Target] = append(m.incoming[e.Target], e)
	}
}

// Link is shorthand for AddRelationship with an explicit confidence.
func (m *MemoryGateway) Link(source, target lineage.NodeID, relType string, confidence float64) {
	m.AddRelationship(RawEdge{Source: source, Target: target, RelationshipType: relType, Confidence: Confidence(confidence)})
}

// FailEntity makes the next n FetchEntity calls for id fail transiently.
func (m *MemoryGateway) FailEntity(id lineage.NodeID, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entityFailures[id] = n
}

// FailRelationships makes the next n FetchRelationships calls for id fail
// transiently.
func (m *MemoryGateway) FailRelationships(id lineage.NodeID, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relFailures[id] = n
}

// EntityCalls returns how many times FetchEntity was called for id,
// including calls that timed out.
func (m *MemoryGateway) EntityCalls(id lineage.NodeID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entityCalls[id]
}

// RelationshipCalls returns how many times FetchRelationships was called for id.
func (m *MemoryGateway) RelationshipCalls(id lineage.NodeID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.relCalls[id]
}

// CursorsSeen returns the non-empty cursors received, in call order.
func (m *MemoryGateway) CursorsSeen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cursorsSeen...)
}

// FetchEntity implements Gateway.
func (m *MemoryGateway) FetchEntity(ctx context.Context, id lineage.NodeID) (*lineage.Node, error) {
	m.mu.Lock()
	m.entityCalls[id]++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entityFailures[id] > 0 {
		m.entityFailures[id]--
		return nil, Transient(fmt.Errorf("injected entity failure for %s", id))
	}

	n, ok := m.entities[id]
	if !ok {
		return nil, lineage.NewError("FetchEntity", id, lineage.ErrNotFound)
	}
	return &n, nil
}

// FetchRelationships implements Gateway.
func (m *MemoryGateway) FetchRelationships(ctx context.Context, id lineage.NodeID, dir lineage.Direction, cursor string) (*RelationshipPage, error) {
	m.mu.Lock()
	m.relCalls[id]++
	if cursor != "" {
		m.cursorsSeen = append(m.cursorsSeen, cursor)
	}
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relFailures[id] > 0 {
		m.relFailures[id]--
		return nil, Transient(fmt.Errorf("injected relationship failure for %s", id))
	}

	var all []RawEdge
	switch dir {
	case lineage.Downstream:
		all = m.outgoing[id]
	case lineage.Upstream:
		all = m.incoming[id]
	default:
		return nil, fmt.Errorf("FetchRelationships: unsupported direction %s", dir)
	}

	offset := 0
	if cursor != "" {
		var err error
		offset, err = decodeMemoryCursor(cursor, id, dir)
		if err != nil {
			return nil, err
		}
	}
	if offset > len(all) {
		offset = len(all)
	}

	end := min(offset+m.pageSize, len(all))
	page := &RelationshipPage{Edges: append([]RawEdge(nil), all[offset:end]...)}
	if end < len(all) {
		page.NextCursor = encodeMemoryCursor(id, dir, end)
	}
	return page, nil
}

// Ping implements Pinger; an in-memory catalog is always reachable.
func (m *MemoryGateway) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryGateway) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func encodeMemoryCursor(id lineage.NodeID, dir lineage.Direction, offset int) string {
	raw := fmt.Sprintf("%s|%s|%d", dir, id, offset)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeMemoryCursor(cursor string, id lineage.NodeID, dir lineage.Direction) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) < 3 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	wantPrefix := dir.String() + "|" + string(id) + "|"
	if !strings.HasPrefix(string(raw), wantPrefix) {
		return 0, fmt.Errorf("cursor %q does not belong to %s/%s", cursor, id, dir)
	}
	offset, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor offset in %q", cursor)
	}
	return offset, nil
}
