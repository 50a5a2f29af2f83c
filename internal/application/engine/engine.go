package engine

import (
	"context"
	"time"

	"github.com/aescanero/dagrun/internal/application/executors"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Engine drives runs from pending to a terminal status.
type Engine struct {
	registry  *executors.Registry
	store     ports.RunStore
	publisher *eventPublisher
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// New creates an engine. publisher may be nil when nobody listens for run
// events.
func New(
	registry *executors.Registry,
	store ports.RunStore,
	publisher ports.Publisher,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		publisher: &eventPublisher{
			pub:     publisher,
			metrics: metrics,
			logger:  logger,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Registry returns the executor registry used for dispatch.
func (e *Engine) Registry() *executors.Registry { return e.registry }

// Execute runs a workflow against a pending run, mutating run in place until
// it is success or failed. A node failure is not returned as an error; it is
// recorded on the run. Execute only returns an error when run is not pending
// or when the final persist fails.
func (e *Engine) Execute(ctx context.Context, wf *domain.Workflow, run *domain.Run) error {
	if run.Status != domain.RunStatusPending {
		return errors.Wrapf(ErrRunNotPending, "run %s is %s", run.ID, run.Status)
	}

	start := time.Now()
	e.metrics.RecordRunStarted()
	e.metrics.IncActiveRuns()
	defer e.metrics.DecActiveRuns()

	logger := e.logger.With(
		zap.String("run_id", run.ID),
		zap.String("workflow_id", run.WorkflowID))
	logger.Info("run started")

	runErr := e.run(ctx, wf, run, logger)
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = &domain.RunError{
			Message: runErr.Error(),
			Stack:   stackOf(runErr),
			NodeID:  nodeIDOf(runErr),
		}
		e.publisher.failure(ctx, run.ID, runErr.Error())
	}

	return e.finalize(ctx, run, start, logger)
}

// run performs everything between pending and the terminal decision.
func (e *Engine) run(ctx context.Context, wf *domain.Workflow, run *domain.Run, logger *zap.Logger) error {
	snapshot, err := wf.Clone()
	if err != nil {
		return errors.WithStack(err)
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusRunning
	run.StartedAt = &now
	if err := e.store.Save(ctx, run); err != nil {
		return errors.Wrap(err, "failed to persist running run")
	}
	e.publisher.status(ctx, run, false)

	ec := newExecutionContext(ctx, run, e.publisher, logger)
	ec.Log(domain.LogLevelInfo, "Workflow execution started", "", nil)

	s := &scheduler{
		graph:    BuildGraph(snapshot.Nodes, snapshot.Edges),
		registry: e.registry,
		ec:       ec,
		run:      run,
		metrics:  e.metrics,
		logger:   logger,
		checkpoint: func(ctx context.Context) {
			if err := e.store.Save(ctx, run); err != nil {
				logger.Warn("failed to checkpoint run", zap.Error(err))
			}
		},
	}
	if err := s.traverse(ctx); err != nil {
		return err
	}

	if out, ok := ec.lastOutput(); ok {
		run.Output = out
	} else {
		run.Output = map[string]any{}
	}
	run.Status = domain.RunStatusSuccess
	ec.Log(domain.LogLevelInfo, "Workflow execution completed successfully", "", nil)
	return nil
}

// finalize stamps finishedAt and duration, persists the run and publishes the
// terminal status. It runs exactly once per Execute.
func (e *Engine) finalize(ctx context.Context, run *domain.Run, start time.Time, logger *zap.Logger) error {
	elapsed := time.Since(start)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Duration = elapsed.Milliseconds()

	saveErr := e.store.Save(ctx, run)
	if saveErr != nil {
		logger.Error("failed to persist finished run", zap.Error(saveErr))
	}
	e.publisher.status(ctx, run, true)
	e.metrics.RecordRunCompleted(string(run.Status), elapsed)

	if run.Status == domain.RunStatusFailed {
		logger.Warn("run failed",
			zap.String("error", run.Error.Message),
			zap.Duration("duration", elapsed))
	} else {
		logger.Info("run completed", zap.Duration("duration", elapsed))
	}

	if saveErr != nil {
		return errors.Wrap(saveErr, "failed to persist finished run")
	}
	return nil
}
