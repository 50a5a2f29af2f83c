package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/dagrun/internal/ports"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// Job is a unit of background work, typically one run.
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// Pool runs jobs on a set of long-lived workers. A job never waits: when
// every worker is busy it runs on an overflow goroutine instead, so runs
// always execute concurrently.
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	handoff  chan Job
	done     chan struct{}
	workers  []*worker
	overflow atomic.Int32
	wg       sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool with size long-lived workers.
func NewPool(
	size int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		handoff: make(chan Job),
		done:    make(chan struct{}),
		workers: make([]*worker, size),
	}
	for i := range pool.workers {
		pool.workers[i] = &worker{
			id:     fmt.Sprintf("worker-%d", i),
			pool:   pool,
			status: WorkerStatusIdle,
		}
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return nil
	}
	p.started = true

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for _, w := range p.workers {
		p.wg.Add(1)
		go w.run()
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit starts job right away, on an idle worker if one is parked and on
// an overflow goroutine otherwise. It never blocks.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.handoff <- job:
		return nil
	default:
	}

	n := p.overflow.Add(1)
	p.metrics.SetOverflowJobs(int(n))
	p.logger.Debug("all workers busy, running job on overflow goroutine",
		zap.String("job_id", job.ID),
		zap.Int32("overflow", n))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.metrics.SetOverflowJobs(int(p.overflow.Add(-1)))
		}()
		execute(p.logger, "overflow", job)
	}()
	return nil
}

// OverflowJobs returns the number of jobs running outside the fixed workers.
func (p *Pool) OverflowJobs() int {
	return int(p.overflow.Load())
}

// Health returns the pool's health monitor.
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Shutdown stops accepting jobs and waits for running jobs to finish, or
// for ctx to be done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()

	p.health.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case job := <-w.pool.handoff:
			w.handle(job)
		case <-w.pool.done:
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		}
	}
}

func (w *worker) handle(job Job) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()
	defer w.setStatus(WorkerStatusIdle)

	execute(w.pool.logger, w.id, job)
}

// execute runs one job with a context that is never cancelled and keeps a
// panicking job from taking its goroutine's caller down.
func execute(logger *zap.Logger, workerID string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked",
				zap.String("worker_id", workerID),
				zap.String("job_id", job.ID),
				zap.Any("panic", r))
		}
	}()

	startTime := time.Now()
	job.Run(context.Background())

	logger.Debug("job completed",
		zap.String("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.Duration("duration", time.Since(startTime)))
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
