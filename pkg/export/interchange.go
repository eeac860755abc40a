package export

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// NodeLink is the JSON node-link interchange document.
type NodeLink struct {
	Directed   bool           `json:"directed"`
	Multigraph bool           `json:"multigraph"`
	Nodes      []NodeLinkNode `json:"nodes"`
	Links      []NodeLinkEdge `json:"links"`
}

// NodeLinkNode is a node in a NodeLink document.
type NodeLinkNode struct {
	ID          lineage.NodeID `json:"id"`
	TypeName    string         `json:"typeName,omitempty"`
	DisplayName string         `json:"displayName,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Incomplete  bool           `json:"incomplete,omitempty"`
}

// NodeLinkEdge is an edge in a NodeLink document.
type NodeLinkEdge struct {
	Source           lineage.NodeID `json:"source"`
	Target           lineage.NodeID `json:"target"`
	RelationshipType string         `json:"relationshipType"`
	Confidence       float64        `json:"confidence"`
}

func writeNodeLink(doc *Document) ([]byte, error) {
	out := NodeLink{
		Directed:   true,
		Multigraph: true,
		Nodes:      make([]NodeLinkNode, 0, len(doc.Nodes)),
		Links:      make([]NodeLinkEdge, 0, len(doc.Edges)),
	}
	for _, n := range doc.Nodes {
		out.Nodes = append(out.Nodes, NodeLinkNode{
			ID:          n.ID,
			TypeName:    n.TypeName,
			DisplayName: n.DisplayName,
			Attributes:  n.Attributes,
			Incomplete:  n.Incomplete,
		})
	}
	for _, e := range doc.Edges {
		out.Links = append(out.Links, NodeLinkEdge(e))
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode interchange: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseInterchange rebuilds a graph from a NodeLink document.
func ParseInterchange(data []byte) (*lineage.Graph, error) {
	var doc NodeLink
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse interchange: %w", err)
	}

	b := newGraphBuilder()
	for _, n := range doc.Nodes {
		if err := b.node(lineage.Node{
			ID:          n.ID,
			TypeName:    n.TypeName,
			DisplayName: n.DisplayName,
			Attributes:  n.Attributes,
			Incomplete:  n.Incomplete,
		}); err != nil {
			return nil, err
		}
	}
	for _, l := range doc.Links {
		if err := b.edge(lineage.Edge(l)); err != nil {
			return nil, err
		}
	}
	return b.g, nil
}

// graphBuilder checks parsed documents for duplicate nodes and dangling
// edges while rebuilding a graph.
type graphBuilder struct {
	g *lineage.Graph
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{g: lineage.NewGraph()}
}

func (b *graphBuilder) node(n lineage.Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: node without id", ErrInvalidDocument)
	}
	if !b.g.AddNode(n) {
		return fmt.Errorf("%w: duplicate node %q", ErrInvalidDocument, n.ID)
	}
	return nil
}

func (b *graphBuilder) edge(e lineage.Edge) error {
	if !b.g.HasNode(e.Source) || !b.g.HasNode(e.Target) {
		return fmt.Errorf("%w: edge %s references an unknown node", lineage.ErrMalformedEdge, e)
	}
	b.g.AddEdge(e)
	return nil
}
