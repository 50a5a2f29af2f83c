package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoStartNodes fails a run whose graph has no node without incoming
	// edges.
	ErrNoStartNodes = errors.New("No starting nodes found in workflow")

	// ErrUnknownNodeType is matched by UnknownNodeTypeError.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrRunNotPending is returned by Execute for a run that already left
	// pending. The run is not touched.
	ErrRunNotPending = errors.New("run is not pending")
)

// UnknownNodeTypeError is raised when a node's type has no executor.
type UnknownNodeTypeError struct {
	Type string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("No executor found for node type: %s", e.Type)
}

// Is matches ErrUnknownNodeType.
func (e *UnknownNodeTypeError) Is(target error) bool {
	return target == ErrUnknownNodeType
}

// NodeError is a run-fatal failure attributed to one node.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string { return e.Err.Error() }

func (e *NodeError) Unwrap() error { return e.Err }

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackOf renders err followed by the outermost stack trace recorded in its
// chain, if any.
func stackOf(err error) string {
	var st stackTracer
	if !errors.As(err, &st) {
		return ""
	}
	return fmt.Sprintf("%s%+v", err.Error(), st.StackTrace())
}

// nodeIDOf returns the failing node of err, if any.
func nodeIDOf(err error) string {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne.NodeID
	}
	return ""
}
