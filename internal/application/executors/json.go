package executors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aescanero/dagrun/internal/domain"
)

// JSONParseParams holds the text to parse; the resolved input is used when
// empty.
type JSONParseParams struct {
	JSONString string `json:"jsonString"`
}

// JSONParseExecutor decodes a JSON document.
type JSONParseExecutor struct{}

func (e *JSONParseExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p JSONParseParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	text := p.JSONString
	if text == "" {
		s, ok := input.(string)
		if !ok {
			return Result{}, fmt.Errorf("Invalid JSON: input is %T, not a string", input)
		}
		text = s
	}

	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Result{}, fmt.Errorf("Invalid JSON: %w", err)
	}
	return Result{Data: out}, nil
}

// JSONStringifyParams selects indented output.
type JSONStringifyParams struct {
	Pretty bool `json:"pretty"`
}

// JSONStringifyExecutor encodes the resolved input as JSON text.
type JSONStringifyExecutor struct{}

func (e *JSONStringifyExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p JSONStringifyParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	var (
		raw []byte
		err error
	)
	if p.Pretty {
		raw, err = json.MarshalIndent(input, "", "  ")
	} else {
		raw, err = json.Marshal(input)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return Result{Data: string(raw)}, nil
}
