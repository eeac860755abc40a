package lineage

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMalformedEdge = errors.New("malformed edge")
)

// LineageError provides structured error information for engine operations.
type LineageError struct {
	Op      string // Operation that failed (e.g., "FetchEntity", "Score")
	NodeID  NodeID // Node involved, if any
	Cause   error  // Underlying error
	Context string // Additional context
}

// Error implements the error interface.
func (e *LineageError) Error() string {
	switch {
	case e.NodeID != "" && e.Context != "":
		return fmt.Sprintf("%s node %s (%s): %v", e.Op, e.NodeID, e.Context, e.Cause)
	case e.NodeID != "":
		return fmt.Sprintf("%s node %s: %v", e.Op, e.NodeID, e.Cause)
	case e.Context != "":
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Context, e.Cause)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
}

// Unwrap returns the underlying cause for error chain support.
func (e *LineageError) Unwrap() error {
	return e.Cause
}

// NewError creates a LineageError.
func NewError(op string, id NodeID, cause error) *LineageError {
	return &LineageError{Op: op, NodeID: id, Cause: cause}
}

// InvalidConfig returns an error wrapping ErrInvalidConfig.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// RootNotFoundError reports root ids that do not exist in the catalog.
type RootNotFoundError struct {
	IDs []NodeID
}

func (e *RootNotFoundError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("root not found: %s", strings.Join(ids, ", "))
}

// Is makes errors.Is(err, ErrNotFound) true for a RootNotFoundError.
func (e *RootNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
