package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of a run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"

	// RunStatusCancelled is part of the stored schema; the engine never
	// produces it.
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can happen.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusCancelled
}

// NodeStatus is the state of a single node execution.
type NodeStatus string

const (
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
)

// LogLevel is the severity of a run log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLogLevel maps free text to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LogLevelDebug, LogLevelWarn, LogLevelError:
		return LogLevel(s)
	}
	return LogLevelInfo
}

// LogEntry is one line of a run's log.
type LogEntry struct {
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	NodeID    string    `json:"nodeId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NodeExecution records one dequeued node.
type NodeExecution struct {
	NodeID     string     `json:"nodeId"`
	Status     NodeStatus `json:"status"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Input      any        `json:"input,omitempty"`
	Output     any        `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunError describes why a run failed.
type RunError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	NodeID  string `json:"nodeId,omitempty"`
}

// Run is the durable record of one workflow execution.
type Run struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflowId"`
	Status         RunStatus       `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	Duration       int64           `json:"duration"` // milliseconds
	Input          any             `json:"input"`
	Output         any             `json:"output"`
	Error          *RunError       `json:"error,omitempty"`
	ExecutedBy     string          `json:"executedBy,omitempty"`
	Logs           []LogEntry      `json:"logs"`
	NodeExecutions []NodeExecution `json:"nodeExecutions"`
}

// NewRun creates a pending run for a workflow.
func NewRun(workflowID string, input any, executedBy string) *Run {
	if input == nil {
		input = map[string]any{}
	}
	return &Run{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		Status:         RunStatusPending,
		CreatedAt:      time.Now().UTC(),
		Input:          input,
		Output:         map[string]any{},
		ExecutedBy:     executedBy,
		Logs:           []LogEntry{},
		NodeExecutions: []NodeExecution{},
	}
}

// Clone returns a deep copy through the JSON document form. Numbers inside
// Input, Output and log data come back as float64.
func (r *Run) Clone() (*Run, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	var out Run
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &out, nil
}
