// Package ports declares the interfaces the engine and API consume. Concrete
// implementations live under pkg/adapters.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
)

// ErrRunNotFound is returned by RunStore implementations for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists run documents.
type RunStore interface {
	Save(ctx context.Context, run *domain.Run) error
	Get(ctx context.Context, runID string) (*domain.Run, error)
	// List returns the runs of a workflow, newest first.
	List(ctx context.Context, workflowID string) ([]*domain.Run, error)
	Delete(ctx context.Context, runID string) error
}

// Publisher emits a named event. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, topic string, payload any) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, topic string, payload any) error {
	return f(ctx, topic, payload)
}

// Message is an event delivered to a subscriber. Payload is either the value
// given to Publish (in-process buses) or its JSON encoding as
// json.RawMessage (networked buses).
type Message struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Subscriber delivers published events for a set of topics until ctx is done,
// then closes the channel. Slow consumers may miss events.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (<-chan Message, error)
}

// MetricsCollector records engine and worker metrics.
type MetricsCollector interface {
	RecordRunStarted()
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeExecuted(nodeType, status string, duration time.Duration)
	RecordPublishFailure(topic string)
	IncActiveRuns()
	DecActiveRuns()
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetOverflowJobs(n int)
}

// CompletionRequest is a single-turn prompt for an LLM.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// CompletionResponse is the text answer and token usage.
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	StopReason   string
}

// LLMClient produces completions for the llm node.
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
