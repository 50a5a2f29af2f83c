package executors

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"go.uber.org/zap"
)

// Result is a successful node outcome. Port, when set, selects which
// outgoing edges fire.
type Result struct {
	Data any
	Port string
}

// ExecContext is the per-run view an executor gets of the execution context.
type ExecContext interface {
	RunID() string
	Log(level domain.LogLevel, message, nodeID string, data any)
	Output(nodeID string) (any, bool)
	Outputs() map[string]any
}

// Executor performs the operation of one node type.
type Executor interface {
	Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	return f(ctx, node, input, ec)
}

// Options configures the built-in executors.
type Options struct {
	// HTTPTimeout is used by http-request nodes that do not set one.
	HTTPTimeout time.Duration
	// HTTPClient overrides the transport of http-request nodes.
	HTTPClient *http.Client
	// LLM enables the llm node when set.
	LLM ports.LLMClient
	// LLMModel is the default model for llm nodes.
	LLMModel string
	// LLMMaxTokens is the default completion budget for llm nodes.
	LLMMaxTokens int
	Logger       *zap.Logger
}

// Registry maps node types to executors.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.NodeType]Executor
}

// NewEmptyRegistry returns a registry without any executor.
func NewEmptyRegistry() *Registry {
	return &Registry{executors: make(map[domain.NodeType]Executor)}
}

// NewRegistry returns a registry populated with the built-in executors.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = defaultHTTPTimeout
	}

	r := NewEmptyRegistry()
	r.Register(domain.NodeTypeManualTrigger, &TriggerExecutor{Kind: domain.NodeTypeManualTrigger})
	r.Register(domain.NodeTypeWebhook, &TriggerExecutor{Kind: domain.NodeTypeWebhook})
	r.Register(domain.NodeTypeSchedule, &TriggerExecutor{Kind: domain.NodeTypeSchedule})
	r.Register(domain.NodeTypeCondition, &ConditionExecutor{})
	r.Register(domain.NodeTypeTransform, &TransformExecutor{})
	r.Register(domain.NodeTypeLog, &LogExecutor{})
	r.Register(domain.NodeTypeDelay, &DelayExecutor{})
	r.Register(domain.NodeTypeHTTPRequest, &HTTPRequestExecutor{
		client:         opts.HTTPClient,
		defaultTimeout: opts.HTTPTimeout,
	})
	r.Register(domain.NodeTypeJSONParse, &JSONParseExecutor{})
	r.Register(domain.NodeTypeJSONStringify, &JSONStringifyExecutor{})
	r.Register(domain.NodeTypeEmail, &EmailExecutor{})
	r.Register(domain.NodeTypeDatabaseQuery, &DatabaseQueryExecutor{})
	if opts.LLM != nil {
		r.Register(domain.NodeTypeLLM, &LLMExecutor{
			client:       opts.LLM,
			defaultModel: opts.LLMModel,
			maxTokens:    opts.LLMMaxTokens,
			logger:       opts.Logger,
		})
	}
	return r
}

// Register installs or replaces the executor for a node type.
func (r *Registry) Register(nodeType domain.NodeType, executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[nodeType] = executor
}

// Lookup returns the executor for a node type.
func (r *Registry) Lookup(nodeType domain.NodeType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[nodeType]
	return ex, ok
}

// Types returns the registered node types in lexical order.
func (r *Registry) Types() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.NodeType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Missing returns the catalog node types that have no executor. Nodes of
// these types fail the run when reached.
func (r *Registry) Missing() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []domain.NodeType
	for _, t := range domain.CatalogNodeTypes() {
		if _, ok := r.executors[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Dispatch runs an executor and converts a panic into an executor failure.
func (r *Registry) Dispatch(ctx context.Context, ex Executor, node domain.Node, input any, ec ExecContext) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{}
			err = fmt.Errorf("executor panic: %v", p)
		}
	}()
	return ex.Execute(ctx, node, input, ec)
}
