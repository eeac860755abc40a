package export

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dd0wney/cluso-lineage/pkg/gaps"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// ErrUnknownFormat is returned for a format outside the supported set.
var ErrUnknownFormat = errors.New("unknown export format")

// Format names an export format.
type Format string

const (
	FormatJSON        Format = "json"
	FormatYAML        Format = "yaml"
	FormatCSV         Format = "csv"
	FormatXLSX        Format = "xlsx"
	FormatInterchange Format = "interchange" // JSON node-link graph
	FormatGraphML     Format = "graphml"
)

// Kind groups formats by the shape of what they render.
type Kind string

const (
	// KindStructured renders the full annotated document.
	KindStructured Kind = "structured"
	// KindTabular renders one row per node and direction.
	KindTabular Kind = "tabular"
	// KindInterchange renders nodes and edges only, without analysis
	// annotations.
	KindInterchange Kind = "interchange"
)

var formatKinds = map[Format]Kind{
	FormatJSON:        KindStructured,
	FormatYAML:        KindStructured,
	FormatCSV:         KindTabular,
	FormatXLSX:        KindTabular,
	FormatInterchange: KindInterchange,
	FormatGraphML:     KindInterchange,
}

// Formats returns every supported format in a stable order.
func Formats() []Format {
	out := make([]Format, 0, len(formatKinds))
	for f := range formatKinds {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// ParseFormat normalizes s to a supported Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "yml":
		f = FormatYAML
	case "node-link":
		f = FormatInterchange
	}
	if _, ok := formatKinds[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Kind returns the variant the format belongs to.
func (f Format) Kind() Kind {
	return formatKinds[f]
}

// ContentType returns the MIME type of the rendered format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON, FormatInterchange:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatGraphML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the conventional file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatInterchange:
		return "json"
	default:
		return string(f)
	}
}

// Bundle is everything an export can draw on. Only Graph is required.
type Bundle struct {
	Graph        *lineage.Graph
	Impact       *impact.Report
	CriticalPath *impact.CriticalPath
	Gaps         []gaps.Report
	Truncated    bool
}

// Document is the shared representation every format is rendered from.
type Document struct {
	Nodes        []NodeRecord `json:"nodes" yaml:"nodes"`
	Edges        []EdgeRecord `json:"edges" yaml:"edges"`
	CriticalPath *PathRecord  `json:"criticalPath" yaml:"criticalPath"`
	Truncated    bool         `json:"truncated" yaml:"truncated"`
}

// NodeRecord is a node with its analysis annotations.
type NodeRecord struct {
	ID          lineage.NodeID `json:"id" yaml:"id"`
	TypeName    string         `json:"typeName" yaml:"typeName"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Incomplete  bool           `json:"incomplete" yaml:"incomplete"`

	Impact []ImpactRecord `json:"impact,omitempty" yaml:"impact,omitempty"`
	Gap    *GapRecord     `json:"gap,omitempty" yaml:"gap,omitempty"`
}

// ImpactRecord is the impact of a node in one direction.
type ImpactRecord struct {
	Direction      string           `json:"direction" yaml:"direction"`
	Distance       int              `json:"distance" yaml:"distance"`
	VisitOrder     int              `json:"visitOrder" yaml:"visitOrder"`
	Score          *float64         `json:"score" yaml:"score"`
	Risk           impact.RiskLevel `json:"risk" yaml:"risk"`
	Path           []lineage.NodeID `json:"path" yaml:"path"`
	OnCriticalPath bool             `json:"onCriticalPath" yaml:"onCriticalPath"`
}

// GapRecord is the gap classification of a node.
type GapRecord struct {
	MissingUpstream   bool        `json:"missingUpstream" yaml:"missingUpstream"`
	MissingDownstream bool        `json:"missingDownstream" yaml:"missingDownstream"`
	Reason            gaps.Reason `json:"reason" yaml:"reason"`
}

// EdgeRecord is a lineage edge.
type EdgeRecord struct {
	Source           lineage.NodeID `json:"source" yaml:"source"`
	Target           lineage.NodeID `json:"target" yaml:"target"`
	RelationshipType string         `json:"relationshipType" yaml:"relationshipType"`
	Confidence       float64        `json:"confidence" yaml:"confidence"`
}

// PathRecord is the critical path.
type PathRecord struct {
	Direction string           `json:"direction" yaml:"direction"`
	NodeIDs   []lineage.NodeID `json:"nodeIds" yaml:"nodeIds"`
	Edges     []EdgeRecord     `json:"edges" yaml:"edges"`
	Weight    float64          `json:"weight" yaml:"weight"`
	EndScore  float64          `json:"endScore" yaml:"endScore"`
}
