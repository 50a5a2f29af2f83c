package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/dagrun/pkg/adapters/metrics/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(size int) *Pool {
	return NewPool(size, noop.New(), zap.NewNop(), 0)
}

func TestPoolRunsJobs(t *testing.T) {
	p := newTestPool(3)
	require.NoError(t, p.Start())

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(Job{ID: "job", Run: func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		}}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), count.Load())

	require.NoError(t, p.Shutdown(context.Background()))
	for _, s := range p.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, s)
	}
}

func TestPoolOverflowRunsImmediately(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(Job{ID: "blocker", Run: func(ctx context.Context) {
		close(started)
		<-release
	}}))
	<-started

	ran := make(chan struct{})
	require.NoError(t, p.Submit(Job{ID: "second", Run: func(ctx context.Context) {
		close(ran)
		<-release
	}}))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("second job waited for the busy worker")
	}
	assert.Equal(t, 1, p.OverflowJobs())

	status := p.Health().GetStatus()
	assert.Equal(t, 1, status.TotalWorkers)
	assert.Equal(t, 1, status.BusyWorkers)
	assert.Equal(t, 1, status.OverflowJobs)
	assert.True(t, status.Healthy)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, 0, p.OverflowJobs())
}

func TestPoolJobsOverlap(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(Job{ID: "sleep", Run: func(ctx context.Context) {
			defer wg.Done()
			time.Sleep(200 * time.Millisecond)
		}}))
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownWaitsForJobs(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(Job{ID: "slow", Run: func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(5), done.Load())
	assert.ErrorIs(t, p.Submit(Job{ID: "late", Run: func(ctx context.Context) {}}), ErrPoolClosed)
	assert.False(t, p.Health().IsHealthy())
}

func TestPoolShutdownTimeout(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(Job{ID: "stuck", Run: func(ctx context.Context) {
		close(started)
		<-release
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, p.Shutdown(ctx))
	close(release)
}

func TestPoolRecoversPanickingJob(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	ran := make(chan struct{})
	require.NoError(t, p.Submit(Job{ID: "panic", Run: func(ctx context.Context) { panic("boom") }}))
	require.NoError(t, p.Submit(Job{ID: "after", Run: func(ctx context.Context) { close(ran) }}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestJobContextIsNotCancelled(t *testing.T) {
	p := newTestPool(1)
	require.NoError(t, p.Start())

	errCh := make(chan error, 1)
	require.NoError(t, p.Submit(Job{ID: "ctx", Run: func(ctx context.Context) {
		errCh <- ctx.Err()
	}}))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}
