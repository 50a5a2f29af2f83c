package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType selects the executor that performs a node's operation.
type NodeType string

const (
	NodeTypeManualTrigger NodeType = "manual-trigger"
	NodeTypeWebhook       NodeType = "webhook"
	NodeTypeSchedule      NodeType = "schedule"
	NodeTypeCondition     NodeType = "condition"
	NodeTypeTransform     NodeType = "transform"
	NodeTypeLog           NodeType = "log"
	NodeTypeDelay         NodeType = "delay"
	NodeTypeHTTPRequest   NodeType = "http-request"
	NodeTypeJSONParse     NodeType = "json-parse"
	NodeTypeJSONStringify NodeType = "json-stringify"
	NodeTypeEmail         NodeType = "email"
	NodeTypeDatabaseQuery NodeType = "database-query"
	NodeTypeLLM           NodeType = "llm"

	// NodeTypeErrorHandler exists in the editor catalog but has no executor.
	NodeTypeErrorHandler NodeType = "error-handler"
)

// CatalogNodeTypes lists every node type the editor can place on a canvas.
func CatalogNodeTypes() []NodeType {
	return []NodeType{
		NodeTypeManualTrigger,
		NodeTypeWebhook,
		NodeTypeSchedule,
		NodeTypeCondition,
		NodeTypeTransform,
		NodeTypeLog,
		NodeTypeDelay,
		NodeTypeHTTPRequest,
		NodeTypeJSONParse,
		NodeTypeJSONStringify,
		NodeTypeEmail,
		NodeTypeDatabaseQuery,
		NodeTypeLLM,
		NodeTypeErrorHandler,
	}
}

// IsTrigger reports whether the type is an entry-point trigger.
func (t NodeType) IsTrigger() bool {
	switch t {
	case NodeTypeManualTrigger, NodeTypeWebhook, NodeTypeSchedule:
		return true
	}
	return false
}

// Position is the node's location on the editor canvas. It has no effect on
// execution.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a single typed operation inside a workflow graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     NodeType       `json:"type" yaml:"type"`
	Position Position       `json:"position" yaml:"position"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Edge is a directed connection between two nodes. SourceHandle names the
// output port the edge listens on; an empty handle always fires.
type Edge struct {
	ID           string         `json:"id" yaml:"id"`
	Source       string         `json:"source" yaml:"source"`
	Target       string         `json:"target" yaml:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Label        string         `json:"label,omitempty" yaml:"label,omitempty"`
	Data         map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// RetryPolicy is stored with the workflow but not applied by the engine.
type RetryPolicy struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	MaxRetries int  `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay int  `json:"retryDelay" yaml:"retryDelay"` // milliseconds
}

// Schedule is stored with the workflow but not applied by the engine.
type Schedule struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Cron    string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Settings holds workflow-level execution settings. None of them are
// consulted during a run: traversal is sequential, failures are not retried,
// and there is no run deadline.
type Settings struct {
	Concurrency int         `json:"concurrency" yaml:"concurrency"`
	RetryPolicy RetryPolicy `json:"retryPolicy" yaml:"retryPolicy"`
	Schedule    Schedule    `json:"schedule" yaml:"schedule"`
	Timeout     int         `json:"timeout" yaml:"timeout"` // milliseconds
}

// DefaultSettings returns the settings a new workflow is created with.
func DefaultSettings() Settings {
	return Settings{
		Concurrency: 1,
		RetryPolicy: RetryPolicy{MaxRetries: 3, RetryDelay: 1000},
		Timeout:     300000,
	}
}

// Workflow is the definition the engine reads once at run start.
type Workflow struct {
	ID          string   `json:"id" yaml:"id"`
	ProjectID   string   `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []Node   `json:"nodes" yaml:"nodes"`
	Edges       []Edge   `json:"edges" yaml:"edges"`
	Settings    Settings `json:"settings" yaml:"settings"`
	Version     int      `json:"version" yaml:"version"`
}

// Clone returns a deep copy, used as the read-only snapshot of a run.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	var out Workflow
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &out, nil
}
