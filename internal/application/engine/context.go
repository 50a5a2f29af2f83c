package engine

import (
	"context"
	"sync"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"go.uber.org/zap"
)

// ExecutionContext is the per-run state shared by the scheduler and the
// executors: captured outputs and the run log. It is never shared between
// runs.
type ExecutionContext struct {
	// ctx scopes log event publication to the run.
	ctx       context.Context
	run       *domain.Run
	publisher *eventPublisher
	logger    *zap.Logger

	mu      sync.Mutex
	outputs map[string]any
	last    string
	logs    []domain.LogEntry
}

func newExecutionContext(ctx context.Context, run *domain.Run, publisher *eventPublisher, logger *zap.Logger) *ExecutionContext {
	return &ExecutionContext{
		ctx:       ctx,
		run:       run,
		publisher: publisher,
		logger:    logger,
		outputs:   make(map[string]any),
	}
}

// RunID returns the id of the run.
func (c *ExecutionContext) RunID() string { return c.run.ID }

// Log appends an entry to the context log and to the run record, then
// publishes it on the run's log topic.
func (c *ExecutionContext) Log(level domain.LogLevel, message, nodeID string, data any) {
	entry := domain.LogEntry{
		Level:     level,
		Message:   message,
		NodeID:    nodeID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	c.mu.Lock()
	c.logs = append(c.logs, entry)
	c.run.Logs = append(c.run.Logs, entry)
	c.mu.Unlock()

	c.logger.Debug(message,
		zap.String("run_id", c.run.ID),
		zap.String("node_id", nodeID),
		zap.String("level", string(level)))
	c.publisher.log(c.ctx, c.run.ID, entry)
}

// Output returns the captured output of a node that completed.
func (c *ExecutionContext) Output(nodeID string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.outputs[nodeID]
	return v, ok
}

// Outputs returns a copy of every captured output keyed by node id.
func (c *ExecutionContext) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// Logs returns a copy of the entries logged so far.
func (c *ExecutionContext) Logs() []domain.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *ExecutionContext) capture(nodeID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[nodeID] = output
	c.last = nodeID
}

// lastOutput is the output of the node that completed last.
func (c *ExecutionContext) lastOutput() (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == "" {
		return nil, false
	}
	return c.outputs[c.last], true
}
