package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aescanero/dagrun/internal/application/executors"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/aescanero/dagrun/pkg/adapters/events/memory"
	"github.com/aescanero/dagrun/pkg/adapters/metrics/noop"
	storemem "github.com/aescanero/dagrun/pkg/adapters/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	engine *Engine
	store  *storemem.RunStore
	bus    *memory.EventBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storemem.NewRunStore()
	bus := memory.NewEventBus(1024)
	t.Cleanup(func() { _ = bus.Close() })
	registry := executors.NewRegistry(executors.Options{})
	return &fixture{
		engine: New(registry, store, bus, noop.New(), zap.NewNop()),
		store:  store,
		bus:    bus,
	}
}

func workflow(id string, nodes []domain.Node, edges []domain.Edge) *domain.Workflow {
	return &domain.Workflow{ID: id, Name: id, Nodes: nodes, Edges: edges, Settings: domain.DefaultSettings()}
}

func nodeIDs(run *domain.Run) []string {
	ids := make([]string, 0, len(run.NodeExecutions))
	for _, ne := range run.NodeExecutions {
		ids = append(ids, ne.NodeID)
	}
	return ids
}

func messages(run *domain.Run) []string {
	out := make([]string, 0, len(run.Logs))
	for _, l := range run.Logs {
		out = append(out, l.Message)
	}
	return out
}

// drain returns every message already buffered on ch.
func drain(ch <-chan ports.Message) []ports.Message {
	var out []ports.Message
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestExecuteTriggerTransformLog(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-1", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeTransform, Data: map[string]any{"code": "{ value = data.value * 2 }"}},
		{ID: "c", Type: domain.NodeTypeLog, Data: map[string]any{"message": "done"}},
	}, []domain.Edge{
		{ID: "e1", Source: "a", Target: "b"},
		{ID: "e2", Source: "b", Target: "c"},
	})
	run := domain.NewRun(wf.ID, map[string]any{"value": 5}, "tester")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Nil(t, run.Error)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
	assert.False(t, run.FinishedAt.Before(*run.StartedAt))
	assert.GreaterOrEqual(t, run.Duration, int64(0))

	assert.Equal(t, []string{"a", "b", "c"}, nodeIDs(run))
	for _, ne := range run.NodeExecutions {
		assert.Equal(t, domain.NodeStatusSuccess, ne.Status, ne.NodeID)
	}
	assert.Equal(t, map[string]any{"data": map[string]any{"value": 5}}, run.NodeExecutions[1].Input)
	assert.Equal(t, map[string]any{"value": float64(10)}, run.NodeExecutions[1].Output)
	assert.Equal(t, run.NodeExecutions[2].Output, run.Output)

	assert.Equal(t, []string{
		"Workflow execution started",
		"Found 1 starting node(s)",
		"Executing node: manual-trigger (a)",
		"Node completed: manual-trigger (a)",
		"Executing node: transform (b)",
		"Node completed: transform (b)",
		"Executing node: log (c)",
		"done",
		"Node completed: log (c)",
		"Workflow execution completed successfully",
	}, messages(run))
	assert.Equal(t, "c", run.Logs[7].NodeID)
}

func TestExecuteNoStartNodes(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-cycle", []domain.Node{
		{ID: "a", Type: domain.NodeTypeLog},
		{ID: "b", Type: domain.NodeTypeLog},
	}, []domain.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a"},
	})
	run := domain.NewRun(wf.ID, nil, "")
	events, err := f.bus.Subscribe(context.Background(), ports.RunTopics(run.ID)...)
	require.NoError(t, err)

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)
	assert.Equal(t, "No starting nodes found in workflow", run.Error.Message)
	assert.NotEmpty(t, run.Error.Stack)
	assert.Empty(t, run.Error.NodeID)
	assert.Empty(t, run.NodeExecutions)
	require.NotNil(t, run.FinishedAt)

	var terminal, errorsSeen int
	for _, m := range drain(events) {
		switch m.Topic {
		case ports.StatusTopic(run.ID):
			if ev := m.Payload.(domain.StatusEvent); ev.Duration != nil {
				terminal++
				assert.Equal(t, domain.RunStatusFailed, ev.Status)
			}
		case ports.ErrorTopic(run.ID):
			errorsSeen++
			assert.Equal(t, domain.ErrorEvent{Error: "No starting nodes found in workflow"}, m.Payload)
		}
	}
	assert.Equal(t, 1, terminal)
	assert.Equal(t, 1, errorsSeen)
}

func TestExecuteEmptyWorkflowFails(t *testing.T) {
	f := newFixture(t)
	run := domain.NewRun("wf-empty", nil, "")
	require.NoError(t, f.engine.Execute(context.Background(), workflow("wf-empty", nil, nil), run))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "No starting nodes found in workflow", run.Error.Message)
}

func TestExecuteConditionRouting(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-cond", []domain.Node{
		{ID: "start", Type: domain.NodeTypeManualTrigger},
		{ID: "check", Type: domain.NodeTypeCondition, Data: map[string]any{"value1": 10, "operator": ">", "value2": 5}},
		{ID: "yes", Type: domain.NodeTypeLog, Data: map[string]any{"message": "yes"}},
		{ID: "no", Type: domain.NodeTypeLog, Data: map[string]any{"message": "no"}},
		{ID: "always", Type: domain.NodeTypeLog, Data: map[string]any{"message": "always"}},
	}, []domain.Edge{
		{Source: "start", Target: "check"},
		{Source: "check", Target: "yes", SourceHandle: "true"},
		{Source: "check", Target: "no", SourceHandle: "false"},
		{Source: "check", Target: "always"},
	})
	run := domain.NewRun(wf.ID, nil, "")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, []string{"start", "check", "yes", "always"}, nodeIDs(run))
	assert.NotContains(t, messages(run), "no")
}

func TestExecuteFanInRunsNodeOnce(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-diamond", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeTransform, Data: map[string]any{"code": `"from-b"`}},
		{ID: "c", Type: domain.NodeTypeTransform, Data: map[string]any{"code": `"from-c"`}},
		{ID: "d", Type: domain.NodeTypeTransform, Data: map[string]any{"code": "data"}},
	}, []domain.Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "c"},
		{Source: "c", Target: "d"},
		{Source: "b", Target: "d"},
	})
	run := domain.NewRun(wf.ID, map[string]any{}, "")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, []string{"a", "b", "c", "d"}, nodeIDs(run))
	// d takes its input from its first declared incoming edge only.
	assert.Equal(t, "from-c", run.NodeExecutions[3].Output)
	assert.Equal(t, "from-c", run.Output)
}

func TestExecuteMultipleStartNodes(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-multi", []domain.Node{
		{ID: "t1", Type: domain.NodeTypeWebhook},
		{ID: "t2", Type: domain.NodeTypeManualTrigger},
		{ID: "sink", Type: domain.NodeTypeLog},
	}, []domain.Edge{
		{Source: "t1", Target: "sink"},
		{Source: "t2", Target: "sink"},
		{Source: "t2", Target: "missing"},
	})
	run := domain.NewRun(wf.ID, map[string]any{"x": 1}, "")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, []string{"t1", "t2", "sink"}, nodeIDs(run))
	assert.Contains(t, messages(run), "Found 2 starting node(s)")
}

func TestExecuteNetworkFailureStopsRun(t *testing.T) {
	srv := httptest.NewServer(nil)
	unreachable := srv.URL
	srv.Close()

	f := newFixture(t)
	wf := workflow("wf-http", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeHTTPRequest, Data: map[string]any{"url": unreachable, "timeout": 200}},
		{ID: "c", Type: domain.NodeTypeLog},
	}, []domain.Edge{
		{Source: "a", Target: "b"},
		{Source: "b", Target: "c"},
	})
	run := domain.NewRun(wf.ID, nil, "")
	events, err := f.bus.Subscribe(context.Background(), ports.ErrorTopic(run.ID))
	require.NoError(t, err)

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(run))
	failed := run.NodeExecutions[1]
	assert.Equal(t, domain.NodeStatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
	require.NotNil(t, run.Error)
	assert.Equal(t, "b", run.Error.NodeID)
	assert.Equal(t, failed.Error, run.Error.Message)
	assert.NotContains(t, messages(run), "Executing node: log (c)")

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ErrorEvent{Error: run.Error.Message}, got[0].Payload)
}

func TestExecuteUnknownNodeType(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-unknown", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "h", Type: domain.NodeTypeErrorHandler},
	}, []domain.Edge{{Source: "a", Target: "h"}})
	run := domain.NewRun(wf.ID, nil, "")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "No executor found for node type: error-handler", run.Error.Message)
	assert.Equal(t, "h", run.Error.NodeID)
	assert.Equal(t, domain.NodeStatusFailed, run.NodeExecutions[1].Status)
}

func TestExecuteRejectsNonPendingRun(t *testing.T) {
	f := newFixture(t)
	run := domain.NewRun("wf", nil, "")
	run.Status = domain.RunStatusSuccess

	err := f.engine.Execute(context.Background(), workflow("wf", nil, nil), run)
	assert.ErrorIs(t, err, ErrRunNotPending)
	assert.Nil(t, run.FinishedAt)
	assert.Empty(t, run.Logs)
}

func TestExecutePublishesStatusAndLogs(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-events", []domain.Node{{ID: "a", Type: domain.NodeTypeManualTrigger}}, nil)
	run := domain.NewRun(wf.ID, nil, "")
	events, err := f.bus.Subscribe(context.Background(), ports.RunTopics(run.ID)...)
	require.NoError(t, err)

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	got := drain(events)
	require.NotEmpty(t, got)

	first := got[0]
	assert.Equal(t, ports.StatusTopic(run.ID), first.Topic)
	assert.Equal(t, domain.StatusEvent{Status: domain.RunStatusRunning, RunID: run.ID}, first.Payload)

	last := got[len(got)-1]
	assert.Equal(t, ports.StatusTopic(run.ID), last.Topic)
	ev := last.Payload.(domain.StatusEvent)
	assert.Equal(t, domain.RunStatusSuccess, ev.Status)
	require.NotNil(t, ev.Duration)
	assert.Equal(t, run.Duration, *ev.Duration)

	var logs int
	for _, m := range got {
		if m.Topic == ports.LogTopic(run.ID) {
			logs++
		}
		assert.NotEqual(t, ports.ErrorTopic(run.ID), m.Topic)
	}
	assert.Equal(t, len(run.Logs), logs)
}

func TestPublisherFailureDoesNotAffectRun(t *testing.T) {
	store := storemem.NewRunStore()
	for name, pub := range map[string]ports.Publisher{
		"error": ports.PublisherFunc(func(ctx context.Context, topic string, payload any) error {
			return errors.New("broker down")
		}),
		"panic": ports.PublisherFunc(func(ctx context.Context, topic string, payload any) error {
			panic("boom")
		}),
		"nil": nil,
	} {
		t.Run(name, func(t *testing.T) {
			e := New(executors.NewRegistry(executors.Options{}), store, pub, noop.New(), zap.NewNop())
			wf := workflow("wf-pub", []domain.Node{{ID: "a", Type: domain.NodeTypeManualTrigger}}, nil)
			run := domain.NewRun(wf.ID, nil, "")

			require.NoError(t, e.Execute(context.Background(), wf, run))
			assert.Equal(t, domain.RunStatusSuccess, run.Status)
		})
	}
}

type failingStore struct {
	ports.RunStore
	failAfter int
	calls     int
}

func (s *failingStore) Save(ctx context.Context, run *domain.Run) error {
	s.calls++
	if s.calls > s.failAfter {
		return errors.New("disk full")
	}
	return s.RunStore.Save(ctx, run)
}

func TestExecuteInitialPersistFailureFailsRun(t *testing.T) {
	store := &failingStore{RunStore: storemem.NewRunStore(), failAfter: 0}
	e := New(executors.NewRegistry(executors.Options{}), store, nil, noop.New(), zap.NewNop())
	wf := workflow("wf", []domain.Node{{ID: "a", Type: domain.NodeTypeManualTrigger}}, nil)
	run := domain.NewRun(wf.ID, nil, "")

	err := e.Execute(context.Background(), wf, run)
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error.Message, "disk full")
	assert.Empty(t, run.NodeExecutions)
}

func TestExecuteCheckpointFailureIsNotFatal(t *testing.T) {
	// The running save succeeds; checkpoints fail; the final save fails too.
	store := &failingStore{RunStore: storemem.NewRunStore(), failAfter: 1}
	e := New(executors.NewRegistry(executors.Options{}), store, nil, noop.New(), zap.NewNop())
	wf := workflow("wf", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeLog},
	}, []domain.Edge{{Source: "a", Target: "b"}})
	run := domain.NewRun(wf.ID, nil, "")

	err := e.Execute(context.Background(), wf, run)
	require.Error(t, err)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Len(t, run.NodeExecutions, 2)
}

func TestExecutePersistedRunRoundTrip(t *testing.T) {
	f := newFixture(t)
	wf := workflow("wf-rt", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeLog, Data: map[string]any{"message": "hello"}},
	}, []domain.Edge{{Source: "a", Target: "b"}})
	run := domain.NewRun(wf.ID, map[string]any{"k": "v"}, "")

	require.NoError(t, f.engine.Execute(context.Background(), wf, run))

	stored, err := f.store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Status, stored.Status)
	assert.Equal(t, run.Output, stored.Output)
	assert.Equal(t, messages(run), messages(stored))
	assert.Equal(t, nodeIDs(run), nodeIDs(stored))
	assert.Equal(t, run.Duration, stored.Duration)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	f := newFixture(t)

	const runs = 8
	results := make([]*domain.Run, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prefix := fmt.Sprintf("r%d-", i)
			wf := workflow(prefix+"wf", []domain.Node{
				{ID: prefix + "a", Type: domain.NodeTypeManualTrigger},
				{ID: prefix + "b", Type: domain.NodeTypeDelay, Data: map[string]any{"duration": 10}},
				{ID: prefix + "c", Type: domain.NodeTypeLog, Data: map[string]any{"message": prefix}},
			}, []domain.Edge{
				{Source: prefix + "a", Target: prefix + "b"},
				{Source: prefix + "b", Target: prefix + "c"},
			})
			run := domain.NewRun(wf.ID, map[string]any{"i": i}, "")
			assert.NoError(t, f.engine.Execute(context.Background(), wf, run))
			results[i] = run
		}(i)
	}
	wg.Wait()

	for i, run := range results {
		prefix := fmt.Sprintf("r%d-", i)
		require.NotNil(t, run)
		assert.Equal(t, domain.RunStatusSuccess, run.Status)
		assert.Equal(t, []string{prefix + "a", prefix + "b", prefix + "c"}, nodeIDs(run))
		for _, l := range run.Logs {
			if l.NodeID != "" {
				assert.Equal(t, prefix+"c", l.NodeID)
			}
		}
		assert.Contains(t, messages(run), prefix)
	}
}

func TestExecutorSubstitution(t *testing.T) {
	registry := executors.NewRegistry(executors.Options{})
	registry.Register(domain.NodeTypeHTTPRequest, executors.ExecutorFunc(
		func(ctx context.Context, n domain.Node, input any, ec executors.ExecContext) (executors.Result, error) {
			return executors.Result{Data: map[string]any{"status": 200}}, nil
		}))
	e := New(registry, storemem.NewRunStore(), nil, noop.New(), zap.NewNop())
	wf := workflow("wf", []domain.Node{
		{ID: "a", Type: domain.NodeTypeManualTrigger},
		{ID: "b", Type: domain.NodeTypeHTTPRequest},
	}, []domain.Edge{{Source: "a", Target: "b"}})
	run := domain.NewRun(wf.ID, nil, "")

	require.NoError(t, e.Execute(context.Background(), wf, run))
	assert.Equal(t, map[string]any{"status": 200}, run.Output)
}
