package executors

import (
	"context"
	"encoding/json"

	"github.com/aescanero/dagrun/internal/domain"
)

// LogParams configures a log node. Without a message the resolved input
// envelope is logged as JSON.
type LogParams struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

// LogExecutor appends an entry to the run log and always succeeds.
type LogExecutor struct{}

func (e *LogExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p LogParams
	_ = decodeParams(node.Data, &p)

	message := p.Message
	if message == "" {
		raw, err := json.Marshal(inputEnvelope(input))
		if err != nil {
			message = asText(input)
		} else {
			message = string(raw)
		}
	}
	ec.Log(domain.ParseLogLevel(p.Level), message, node.ID, nil)

	return Result{Data: map[string]any{"logged": true, "message": message}}, nil
}
