package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

func newChainGateway(opts ...MemoryOption) *MemoryGateway {
	g := NewMemoryGateway(opts...)
	g.AddEntity(lineage.Node{ID: "a", TypeName: "table"})
	g.AddEntity(lineage.Node{ID: "b", TypeName: "view"})
	g.AddEntity(lineage.Node{ID: "c", TypeName: "dashboard"})
	g.Link("a", "b", "feeds", 0.9)
	g.Link("b", "c", "feeds", 0.8)
	return g
}

func TestMemoryGateway_FetchEntity(t *testing.T) {
	g := newChainGateway()
	ctx := context.Background()

	n, err := g.FetchEntity(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, lineage.NodeID("b"), n.ID)
	assert.Equal(t, "view", n.TypeName)

	_, err = g.FetchEntity(ctx, "missing")
	require.Error(t, err)
	assert.True(t, lineage.IsNotFound(err))
	assert.False(t, IsTransient(err))

	assert.Equal(t, 1, g.EntityCalls("b"))
	assert.Equal(t, 1, g.EntityCalls("missing"))
}

func TestMemoryGateway_Directions(t *testing.T) {
	g := newChainGateway()
	ctx := context.Background()

	down, err := g.FetchRelationships(ctx, "b", lineage.Downstream, "")
	require.NoError(t, err)
	require.Len(t, down.Edges, 1)
	assert.Equal(t, lineage.NodeID("c"), down.Edges[0].Target)

	up, err := g.FetchRelationships(ctx, "b", lineage.Upstream, "")
	require.NoError(t, err)
	require.Len(t, up.Edges, 1)
	assert.Equal(t, lineage.NodeID("a"), up.Edges[0].Source)
	assert.InDelta(t, 0.9, *up.Edges[0].Confidence, 1e-12)

	_, err = g.FetchRelationships(ctx, "b", lineage.Both, "")
	assert.Error(t, err)
}

func TestMemoryGateway_Pagination(t *testing.T) {
	g := NewMemoryGateway(WithPageSize(2))
	g.AddEntity(lineage.Node{ID: "hub", TypeName: "table"})
	for _, target := range []lineage.NodeID{"t1", "t2", "t3", "t4", "t5"} {
		g.Link("hub", target, "feeds", 1)
	}
	ctx := context.Background()

	var (
		got    []lineage.NodeID
		cursor string
		pages  int
	)
	for {
		page, err := g.FetchRelationships(ctx, "hub", lineage.Downstream, cursor)
		require.NoError(t, err)
		pages++
		for _, e := range page.Edges {
			got = append(got, e.Target)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []lineage.NodeID{"t1", "t2", "t3", "t4", "t5"}, got)
	assert.Len(t, g.CursorsSeen(), 2)
}

func TestMemoryGateway_RejectsForeignCursor(t *testing.T) {
	g := NewMemoryGateway(WithPageSize(1))
	g.Link("a", "b", "feeds", 1)
	g.Link("a", "c", "feeds", 1)
	ctx := context.Background()

	page, err := g.FetchRelationships(ctx, "a", lineage.Downstream, "")
	require.NoError(t, err)
	require.NotEmpty(t, page.NextCursor)

	_, err = g.FetchRelationships(ctx, "b", lineage.Downstream, page.NextCursor)
	assert.Error(t, err)

	_, err = g.FetchRelationships(ctx, "a", lineage.Downstream, "not-base64!")
	assert.Error(t, err)
}

func TestMemoryGateway_InjectedFailures(t *testing.T) {
	g := newChainGateway()
	g.FailEntity("a", 2)
	g.FailRelationships("a", 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.FetchEntity(ctx, "a")
		require.Error(t, err)
		assert.True(t, IsTransient(err), "attempt %d should be transient", i)
	}
	_, err := g.FetchEntity(ctx, "a")
	require.NoError(t, err)

	_, err = g.FetchRelationships(ctx, "a", lineage.Downstream, "")
	assert.True(t, IsTransient(err))
	_, err = g.FetchRelationships(ctx, "a", lineage.Downstream, "")
	assert.NoError(t, err)

	assert.Equal(t, 3, g.EntityCalls("a"))
	assert.Equal(t, 2, g.RelationshipCalls("a"))
}

func TestMemoryGateway_LatencyHonorsCancellation(t *testing.T) {
	g := newChainGateway(WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.FetchEntity(ctx, "a")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTransient(t *testing.T) {
	assert.Nil(t, Transient(nil))

	base := errors.New("connection reset")
	err := Transient(base)
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, base))
	assert.False(t, IsTransient(base))
}
