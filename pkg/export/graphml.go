package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// ErrInvalidDocument is returned when an interchange document cannot be
// turned back into a graph.
var ErrInvalidDocument = errors.New("invalid interchange document")

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

// GraphML data keys.
const (
	keyType         = "type"
	keyDisplayName  = "displayName"
	keyIncomplete   = "incomplete"
	keyRelationship = "relationshipType"
	keyConfidence   = "confidence"
)

type graphML struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func graphMLKeys() []graphMLKey {
	return []graphMLKey{
		{ID: keyType, For: "node", AttrName: "typeName", AttrType: "string"},
		{ID: keyDisplayName, For: "node", AttrName: "displayName", AttrType: "string"},
		{ID: keyIncomplete, For: "node", AttrName: "incomplete", AttrType: "boolean"},
		{ID: keyRelationship, For: "edge", AttrName: "relationshipType", AttrType: "string"},
		{ID: keyConfidence, For: "edge", AttrName: "confidence", AttrType: "double"},
	}
}

func writeGraphML(doc *Document) ([]byte, error) {
	out := graphML{
		XMLNS: graphMLNamespace,
		Keys:  graphMLKeys(),
		Graph: graphMLGraph{ID: "lineage", EdgeDefault: "directed"},
	}
	for _, n := range doc.Nodes {
		node := graphMLNode{ID: string(n.ID)}
		node.Data = append(node.Data, graphMLData{Key: keyType, Value: n.TypeName})
		if n.DisplayName != "" {
			node.Data = append(node.Data, graphMLData{Key: keyDisplayName, Value: n.DisplayName})
		}
		if n.Incomplete {
			node.Data = append(node.Data, graphMLData{Key: keyIncomplete, Value: "true"})
		}
		out.Graph.Nodes = append(out.Graph.Nodes, node)
	}
	for _, e := range doc.Edges {
		out.Graph.Edges = append(out.Graph.Edges, graphMLEdge{
			Source: string(e.Source),
			Target: string(e.Target),
			Data: []graphMLData{
				{Key: keyRelationship, Value: e.RelationshipType},
				{Key: keyConfidence, Value: strconv.FormatFloat(e.Confidence, 'g', -1, 64)},
			},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("failed to encode graphml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ParseGraphML rebuilds a graph from a GraphML document. Only the data keys
// this package writes are interpreted; others are ignored.
func ParseGraphML(data []byte) (*lineage.Graph, error) {
	var doc graphML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse graphml: %w", err)
	}

	b := newGraphBuilder()
	for _, n := range doc.Graph.Nodes {
		node := lineage.Node{ID: lineage.NodeID(n.ID)}
		for _, d := range n.Data {
			switch d.Key {
			case keyType:
				node.TypeName = d.Value
			case keyDisplayName:
				node.DisplayName = d.Value
			case keyIncomplete:
				v, err := strconv.ParseBool(d.Value)
				if err != nil {
					return nil, fmt.Errorf("%w: node %q: bad incomplete flag %q", ErrInvalidDocument, n.ID, d.Value)
				}
				node.Incomplete = v
			}
		}
		if err := b.node(node); err != nil {
			return nil, err
		}
	}

	for _, e := range doc.Graph.Edges {
		edge := lineage.Edge{
			Source:     lineage.NodeID(e.Source),
			Target:     lineage.NodeID(e.Target),
			Confidence: lineage.DefaultConfidence,
		}
		for _, d := range e.Data {
			switch d.Key {
			case keyRelationship:
				edge.RelationshipType = d.Value
			case keyConfidence:
				c, err := strconv.ParseFloat(d.Value, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: edge %s->%s: bad confidence %q", ErrInvalidDocument, e.Source, e.Target, d.Value)
				}
				edge.Confidence = c
			}
		}
		if err := b.edge(edge); err != nil {
			return nil, err
		}
	}
	return b.g, nil
}
