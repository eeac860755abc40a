package lineage

import (
	"fmt"
	"strings"
)

// NodeID identifies a data asset in the catalog. It is opaque to the engine.
type NodeID string

// Node is a data asset fetched from the catalog.
// A Node is immutable once it has been added to a Graph.
type Node struct {
	ID          NodeID         `json:"id" yaml:"id"`
	TypeName    string         `json:"typeName" yaml:"typeName"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// Incomplete is set by the loader when the node could not be fully
	// fetched after retries. Placeholder nodes carry only their ID.
	Incomplete bool `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}

// DefaultConfidence is used when the catalog omits an edge confidence.
const DefaultConfidence = 1.0

// Edge is a lineage relationship: data flows from Source to Target.
type Edge struct {
	Source           NodeID  `json:"source" yaml:"source"`
	Target           NodeID  `json:"target" yaml:"target"`
	RelationshipType string  `json:"relationshipType" yaml:"relationshipType"`
	Confidence       float64 `json:"confidence" yaml:"confidence"`
}

// EdgeKey is the deduplication key of an edge.
type EdgeKey struct {
	Source           NodeID
	Target           NodeID
	RelationshipType string
}

// Key returns the deduplication key of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, RelationshipType: e.RelationshipType}
}

// IsSelfLoop reports whether the edge starts and ends at the same node.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Far returns the endpoint reached when following the edge from the given
// side in direction d: the target going downstream, the source going upstream.
func (e Edge) Far(d Direction) NodeID {
	if d == Upstream {
		return e.Source
	}
	return e.Target
}

// Near returns the endpoint the edge is followed from in direction d.
func (e Edge) Near(d Direction) NodeID {
	if d == Upstream {
		return e.Target
	}
	return e.Source
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s %.3f]-> %s", e.Source, e.RelationshipType, e.Confidence, e.Target)
}

// Direction controls which lineage relationships are followed.
type Direction int

const (
	Downstream Direction = iota // source -> target
	Upstream                    // target -> source
	Both                        // two independent passes
)

// String returns the lower-case name of the direction.
func (d Direction) String() string {
	switch d {
	case Downstream:
		return "downstream"
	case Upstream:
		return "upstream"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the defined directions.
func (d Direction) Valid() bool {
	return d == Downstream || d == Upstream || d == Both
}

// Passes returns the single-direction passes that make up d.
// Both expands to downstream followed by upstream.
func (d Direction) Passes() []Direction {
	if d == Both {
		return []Direction{Downstream, Upstream}
	}
	return []Direction{d}
}

// ParseDirection converts a string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "downstream", "down", "out":
		return Downstream, nil
	case "upstream", "up", "in":
		return Upstream, nil
	case "both":
		return Both, nil
	default:
		return Downstream, fmt.Errorf("%w: unknown direction %q", ErrInvalidConfig, s)
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidConfig, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts any name ParseDirection accepts.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
