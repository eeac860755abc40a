// Package catalog defines the contract the engine consumes from an external
// lineage catalog and provides adapters for in-memory fixtures, REST catalogs
// and PostgreSQL lineage tables.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// ErrTransient marks a fetch failure that may succeed when retried.
var ErrTransient = errors.New("transient catalog error")

// Gateway is the catalog service boundary.
//
// FetchEntity returns lineage.ErrNotFound (possibly wrapped) when the id does
// not exist. FetchRelationships returns one page of edges incident to id in
// direction dir (Upstream or Downstream); an empty NextCursor means there are
// no more pages. Cursors are opaque and must be passed back unchanged.
type Gateway interface {
	FetchEntity(ctx context.Context, id lineage.NodeID) (*lineage.Node, error)
	FetchRelationships(ctx context.Context, id lineage.NodeID, dir lineage.Direction, cursor string) (*RelationshipPage, error)
}

// Pinger is implemented by gateways that can report whether the catalog is
// reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RawEdge is an edge as reported by the catalog, before normalization.
// A nil Confidence means the catalog did not supply one.
type RawEdge struct {
	Source           lineage.NodeID `json:"source" yaml:"source"`
	Target           lineage.NodeID `json:"target" yaml:"target"`
	RelationshipType string         `json:"relationshipType" yaml:"relationshipType"`
	Confidence       *float64       `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// RelationshipPage is one page of relationships.
type RelationshipPage struct {
	Edges      []RawEdge
	NextCursor string
}

// Transient wraps err so that IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Confidence returns a pointer to c, for building RawEdges.
func Confidence(c float64) *float64 {
	return &c
}
