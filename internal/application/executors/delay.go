package executors

import (
	"context"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
)

const defaultDelay = 1000 // milliseconds

// DelayParams holds the wait in milliseconds.
type DelayParams struct {
	Duration int64 `json:"duration"`
}

// DelayExecutor suspends the run for the configured duration.
type DelayExecutor struct{}

func (e *DelayExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p DelayParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	ms := p.Duration
	if ms <= 0 {
		ms = defaultDelay
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	return Result{Data: map[string]any{"delayed": ms}}, nil
}
