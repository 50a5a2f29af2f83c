package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dagrun/internal/application/executors"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// scheduler walks one run's graph.
type scheduler struct {
	graph    *Graph
	registry *executors.Registry
	ec       *ExecutionContext
	run      *domain.Run
	metrics  ports.MetricsCollector
	logger   *zap.Logger

	// checkpoint persists the run after each node record.
	checkpoint func(ctx context.Context)
}

// traverse executes every node reachable from the start nodes, breadth-first.
// The first node failure stops the traversal; queued nodes are abandoned.
func (s *scheduler) traverse(ctx context.Context) error {
	starts := s.graph.StartNodes()
	if len(starts) == 0 {
		return errors.WithStack(ErrNoStartNodes)
	}
	s.ec.Log(domain.LogLevelInfo, fmt.Sprintf("Found %d starting node(s)", len(starts)), "", nil)

	executed := make([]bool, s.graph.Len())
	queue := NewWorklist(starts...)
	for queue.Len() > 0 {
		idx, _ := queue.Pop()
		if executed[idx] {
			continue
		}
		if err := s.step(ctx, idx, queue); err != nil {
			return err
		}
		executed[idx] = true
	}
	return nil
}

// step executes one node, records it and enqueues the targets of the edges
// that fire.
func (s *scheduler) step(ctx context.Context, idx int, queue *Worklist) error {
	gn := s.graph.Node(idx)
	node := gn.Node

	s.ec.Log(domain.LogLevelInfo, fmt.Sprintf("Executing node: %s (%s)", node.Type, node.ID), "", nil)

	rec := domain.NodeExecution{
		NodeID:    node.ID,
		Status:    domain.NodeStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	input := s.resolveInput(gn)
	rec.Input = map[string]any{"data": input}

	start := time.Now()
	res, err := s.dispatch(ctx, node, input)
	rec.FinishedAt = time.Now().UTC()

	if err != nil {
		rec.Status = domain.NodeStatusFailed
		rec.Error = err.Error()
		s.record(ctx, node, rec, time.Since(start))
		s.logger.Warn("node failed",
			zap.String("run_id", s.run.ID),
			zap.String("node_id", node.ID),
			zap.String("node_type", string(node.Type)),
			zap.Error(err))
		return &NodeError{NodeID: node.ID, Err: errors.WithStack(err)}
	}

	rec.Status = domain.NodeStatusSuccess
	rec.Output = res.Data
	s.ec.capture(node.ID, res.Data)
	s.ec.Log(domain.LogLevelInfo, fmt.Sprintf("Node completed: %s (%s)", node.Type, node.ID), "", nil)
	s.record(ctx, node, rec, time.Since(start))

	for _, edge := range gn.Outgoing {
		if fires(res.Port, edge) {
			queue.Push(edge.Target)
		}
	}
	return nil
}

// resolveInput returns the output of the first incoming source when that
// source has completed, the run input otherwise. Other incoming edges are
// not consulted.
func (s *scheduler) resolveInput(gn GraphNode) any {
	if len(gn.Incoming) > 0 {
		src := s.graph.Node(gn.Incoming[0].Source).Node.ID
		if out, ok := s.ec.Output(src); ok {
			return out
		}
	}
	return s.run.Input
}

func (s *scheduler) dispatch(ctx context.Context, node domain.Node, input any) (executors.Result, error) {
	ex, ok := s.registry.Lookup(node.Type)
	if !ok {
		return executors.Result{}, &UnknownNodeTypeError{Type: string(node.Type)}
	}
	return s.registry.Dispatch(ctx, ex, node, input, s.ec)
}

func (s *scheduler) record(ctx context.Context, node domain.Node, rec domain.NodeExecution, elapsed time.Duration) {
	s.run.NodeExecutions = append(s.run.NodeExecutions, rec)
	s.metrics.RecordNodeExecuted(string(node.Type), string(rec.Status), elapsed)
	if s.checkpoint != nil {
		s.checkpoint(ctx)
	}
}
