package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aescanero/dagrun/internal/application/engine"
	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"go.uber.org/zap"
)

// ErrInvalidWorkflow wraps validation failures.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Manager coordinates run execution
type Manager struct {
	engine    *engine.Engine
	store     ports.RunStore
	pool      *workers.Pool
	validator *Validator
	logger    *zap.Logger

	// Track runs handed to the pool until they finish
	active sync.Map // map[string]chan struct{}
}

// NewManager creates a new orchestrator manager
func NewManager(
	eng *engine.Engine,
	store ports.RunStore,
	pool *workers.Pool,
	validator *Validator,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		engine:    eng,
		store:     store,
		pool:      pool,
		validator: validator,
		logger:    logger,
	}
}

// Validate checks a workflow definition
func (m *Manager) Validate(wf *domain.Workflow) error {
	if err := m.validator.Validate(wf); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return nil
}

// CreateRun validates the workflow and persists a pending run for it
func (m *Manager) CreateRun(ctx context.Context, wf *domain.Workflow, input any, executedBy string) (*domain.Run, error) {
	if err := m.Validate(wf); err != nil {
		m.logger.Warn("workflow validation failed", zap.Error(err))
		return nil, err
	}

	run := domain.NewRun(wf.ID, input, executedBy)
	if err := m.store.Save(ctx, run); err != nil {
		m.logger.Error("failed to save pending run",
			zap.String("run_id", run.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	m.logger.Info("run created",
		zap.String("run_id", run.ID),
		zap.String("workflow_id", wf.ID),
		zap.String("executed_by", executedBy))
	return run, nil
}

// StartRun hands a pending run to the worker pool and returns immediately.
// The workflow is snapshotted here; later edits to wf do not reach the run.
// From this call on, run belongs to the engine and must not be touched by
// the caller.
func (m *Manager) StartRun(ctx context.Context, wf *domain.Workflow, run *domain.Run) error {
	snapshot, err := wf.Clone()
	if err != nil {
		return err
	}

	done := make(chan struct{})
	m.active.Store(run.ID, done)

	job := workers.Job{
		ID: run.ID,
		Run: func(jobCtx context.Context) {
			defer func() {
				m.active.Delete(run.ID)
				close(done)
			}()
			if err := m.engine.Execute(jobCtx, snapshot, run); err != nil {
				m.logger.Error("run execution error",
					zap.String("run_id", run.ID),
					zap.Error(err))
			}
		},
	}

	if err := m.pool.Submit(job); err != nil {
		m.active.Delete(run.ID)
		close(done)
		if delErr := m.store.Delete(ctx, run.ID); delErr != nil {
			m.logger.Error("failed to delete unscheduled run",
				zap.String("run_id", run.ID),
				zap.Error(delErr))
		}
		return fmt.Errorf("failed to schedule run: %w", err)
	}

	m.logger.Info("run scheduled",
		zap.String("run_id", run.ID),
		zap.Int("overflow_jobs", m.pool.OverflowJobs()))
	return nil
}

// Submit creates a run and starts it. The returned run is a copy of the
// pending record.
func (m *Manager) Submit(ctx context.Context, wf *domain.Workflow, input any, executedBy string) (*domain.Run, error) {
	run, err := m.CreateRun(ctx, wf, input, executedBy)
	if err != nil {
		return nil, err
	}
	pending, err := run.Clone()
	if err != nil {
		return nil, err
	}
	if err := m.StartRun(ctx, wf, run); err != nil {
		return nil, err
	}
	return pending, nil
}

// GetRun returns the stored run record
func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := m.store.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the runs of a workflow, newest first
func (m *Manager) ListRuns(ctx context.Context, workflowID string) ([]*domain.Run, error) {
	runs, err := m.store.List(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Wait blocks until a started run finishes or ctx is done, then returns the
// stored record.
func (m *Manager) Wait(ctx context.Context, runID string) (*domain.Run, error) {
	if val, ok := m.active.Load(runID); ok {
		select {
		case <-val.(chan struct{}):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.GetRun(ctx, runID)
}

// Shutdown stops accepting runs and waits for in-flight runs to finish
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	if err := m.pool.Shutdown(ctx); err != nil {
		return err
	}

	m.logger.Info("orchestrator manager shut down complete")
	return nil
}
