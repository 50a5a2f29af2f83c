package executors_test

import (
	"sync"

	"github.com/aescanero/dagrun/internal/domain"
)

type logLine struct {
	level   domain.LogLevel
	message string
	nodeID  string
}

// fakeContext records log calls and serves canned outputs.
type fakeContext struct {
	mu      sync.Mutex
	runID   string
	outputs map[string]any
	logs    []logLine
}

func newFakeContext() *fakeContext {
	return &fakeContext{runID: "run-1", outputs: map[string]any{}}
}

func (f *fakeContext) RunID() string { return f.runID }

func (f *fakeContext) Log(level domain.LogLevel, message, nodeID string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logLine{level: level, message: message, nodeID: nodeID})
}

func (f *fakeContext) Output(nodeID string) (any, bool) {
	v, ok := f.outputs[nodeID]
	return v, ok
}

func (f *fakeContext) Outputs() map[string]any {
	out := make(map[string]any, len(f.outputs))
	for k, v := range f.outputs {
		out[k] = v
	}
	return out
}

func node(id string, t domain.NodeType, data map[string]any) domain.Node {
	return domain.Node{ID: id, Type: t, Data: data}
}
