package executors

import (
	"context"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
)

// TriggerExecutor implements manual-trigger, webhook and schedule entry
// nodes. The run input passes through unchanged; a trigger with no input
// produces a marker object instead.
type TriggerExecutor struct {
	Kind domain.NodeType
}

func (e *TriggerExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	if input != nil {
		return Result{Data: input}, nil
	}
	marker := map[string]any{"triggered": true}
	if e.Kind == domain.NodeTypeSchedule {
		marker["timestamp"] = time.Now().UTC()
	}
	return Result{Data: marker}, nil
}
