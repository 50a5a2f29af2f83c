package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// TransformParams holds the expression to evaluate. The expression uses HCL
// syntax, e.g. `{ value = data.value * 2 }`.
type TransformParams struct {
	Code string `json:"code"`
}

// TransformExecutor evaluates a user expression against the resolved input.
//
// Variables in scope:
//
//	data     the resolved input
//	input    {data = <resolved input>}
//	outputs  map of node id to captured output
//	run_id   the current run id
type TransformExecutor struct{}

func (e *TransformExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p TransformParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(p.Code) == "" {
		return Result{Data: input}, nil
	}

	out, err := EvalExpression(p.Code, map[string]any{
		"data":    input,
		"input":   inputEnvelope(input),
		"outputs": ec.Outputs(),
		"run_id":  ec.RunID(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("Transform error: %w", err)
	}
	return Result{Data: out}, nil
}

// EvalExpression parses and evaluates an HCL expression with the given
// variables and returns the result as plain Go values (maps, slices, float64,
// string, bool, nil).
func EvalExpression(src string, vars map[string]any) (any, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "transform.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: make(map[string]cty.Value, len(vars)),
		Functions: expressionFunctions(),
	}
	for name, v := range vars {
		cv, err := toCty(v)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		evalCtx.Variables[name] = cv
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s", diags.Error())
	}
	return fromCty(val)
}

func expressionFunctions() map[string]function.Function {
	return map[string]function.Function{
		"abs":        stdlib.AbsoluteFunc,
		"ceil":       stdlib.CeilFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"concat":     stdlib.ConcatFunc,
		"floor":      stdlib.FloorFunc,
		"format":     stdlib.FormatFunc,
		"join":       stdlib.JoinFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"length":     stdlib.LengthFunc,
		"lower":      stdlib.LowerFunc,
		"max":        stdlib.MaxFunc,
		"merge":      stdlib.MergeFunc,
		"min":        stdlib.MinFunc,
		"split":      stdlib.SplitFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
	}
}

// toCty converts a JSON-compatible Go value into a cty value.
func toCty(v any) (cty.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(raw, ty)
}

// fromCty converts a cty value back into plain Go values.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("expression result is not fully known")
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
