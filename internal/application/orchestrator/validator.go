package orchestrator

import (
	"fmt"

	"github.com/aescanero/dagrun/internal/domain"
)

// Validator validates workflow definitions
type Validator struct{}

// NewValidator creates a new workflow validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the fields a run cannot do without. Edges with a missing
// or unknown endpoint and node types without an executor are accepted here;
// the engine drops the former and fails the run on the latter.
func (v *Validator) Validate(wf *domain.Workflow) error {
	if wf == nil {
		return fmt.Errorf("workflow is nil")
	}

	if wf.ID == "" {
		return fmt.Errorf("workflow ID is required")
	}

	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for i, node := range wf.Nodes {
		if err := v.validateNode(node); err != nil {
			return fmt.Errorf("invalid node at index %d: %w", i, err)
		}

		if nodeIDs[node.ID] {
			return fmt.Errorf("duplicate node ID: %s", node.ID)
		}
		nodeIDs[node.ID] = true
	}

	return nil
}

// validateNode validates a single node
func (v *Validator) validateNode(node domain.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node ID is required")
	}

	if node.Type == "" {
		return fmt.Errorf("node %s: type is required", node.ID)
	}

	return nil
}
