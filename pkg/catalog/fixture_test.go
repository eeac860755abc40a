package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

const sampleFixture = `
entities:
  - id: raw.orders
    typeName: table
    displayName: Raw orders
    attributes:
      owner: data-eng
  - id: mart.revenue
    typeName: view
relationships:
  - source: raw.orders
    target: mart.revenue
    relationshipType: feeds
    confidence: 0.75
  - source: mart.revenue
    target: dash.finance
    relationshipType: feeds
`

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture([]byte(sampleFixture))
	require.NoError(t, err)

	require.Len(t, f.Entities, 2)
	assert.Equal(t, lineage.NodeID("raw.orders"), f.Entities[0].ID)
	assert.Equal(t, "table", f.Entities[0].TypeName)
	assert.Equal(t, "data-eng", f.Entities[0].Attributes["owner"])

	require.Len(t, f.Relationships, 2)
	require.NotNil(t, f.Relationships[0].Confidence)
	assert.InDelta(t, 0.75, *f.Relationships[0].Confidence, 1e-12)
	assert.Nil(t, f.Relationships[1].Confidence)
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "entities: [\n"},
		{"missing id", "entities:\n  - typeName: table\n"},
		{"duplicate id", "entities:\n  - id: a\n  - id: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFixture_ServesThroughMemoryGateway(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixture), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)

	g := NewMemoryGatewayFromFixture(f)
	page, err := g.FetchRelationships(context.Background(), "mart.revenue", lineage.Upstream, "")
	require.NoError(t, err)
	require.Len(t, page.Edges, 1)
	assert.Equal(t, lineage.NodeID("raw.orders"), page.Edges[0].Source)

	_, err = g.FetchEntity(context.Background(), "dash.finance")
	assert.True(t, lineage.IsNotFound(err))

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
