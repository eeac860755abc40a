package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

func newTestPGGateway(t *testing.T) *PGGateway {
	t.Helper()
	url := os.Getenv("LINEAGE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LINEAGE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := NewPGGateway(ctx, url)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	require.NoError(t, g.EnsureSchema(ctx))
	require.NoError(t, g.Truncate(ctx))
	return g
}

func TestPGGateway_RoundTrip(t *testing.T) {
	g := newTestPGGateway(t)
	g.SetPageSize(2)
	ctx := context.Background()

	f, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)
	require.NoError(t, g.Seed(ctx, f))
	for _, target := range []lineage.NodeID{"x1", "x2", "x3"} {
		require.NoError(t, g.InsertRelationship(ctx, RawEdge{Source: "raw.orders", Target: target, RelationshipType: "copies"}))
	}

	n, err := g.FetchEntity(ctx, "raw.orders")
	require.NoError(t, err)
	assert.Equal(t, "table", n.TypeName)
	assert.Equal(t, "data-eng", n.Attributes["owner"])

	_, err = g.FetchEntity(ctx, "nope")
	assert.True(t, lineage.IsNotFound(err))

	var (
		targets []lineage.NodeID
		cursor  string
	)
	for {
		page, err := g.FetchRelationships(ctx, "raw.orders", lineage.Downstream, cursor)
		require.NoError(t, err)
		for _, e := range page.Edges {
			targets = append(targets, e.Target)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []lineage.NodeID{"mart.revenue", "x1", "x2", "x3"}, targets)

	up, err := g.FetchRelationships(ctx, "mart.revenue", lineage.Upstream, "")
	require.NoError(t, err)
	require.Len(t, up.Edges, 1)
	require.NotNil(t, up.Edges[0].Confidence)
	assert.InDelta(t, 0.75, *up.Edges[0].Confidence, 1e-9)
}

func TestPGGateway_InvalidCursor(t *testing.T) {
	g := newTestPGGateway(t)
	_, err := g.FetchRelationships(context.Background(), "a", lineage.Downstream, "abc")
	assert.Error(t, err)
	assert.False(t, IsTransient(err))
}
