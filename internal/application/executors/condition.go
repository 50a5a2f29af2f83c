package executors

import (
	"context"
	"math"

	"github.com/aescanero/dagrun/internal/domain"
)

const (
	PortTrue  = "true"
	PortFalse = "false"
)

// ConditionParams compares Value1 with Value2. A falsy Value1 (missing,
// empty string, zero or false) falls back to the resolved input.
type ConditionParams struct {
	Value1   any    `json:"value1"`
	Operator string `json:"operator"`
	Value2   any    `json:"value2"`
}

// ConditionExecutor routes to the "true" or "false" port.
type ConditionExecutor struct{}

func (e *ConditionExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p ConditionParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	left := p.Value1
	if isFalsy(left) {
		left = input
	}

	result := Compare(left, p.Operator, p.Value2)
	port := PortFalse
	if result {
		port = PortTrue
	}
	return Result{
		Data: map[string]any{"result": result, "output": port},
		Port: port,
	}, nil
}

// Compare evaluates a comparison operator. Numeric operands (including
// numeric strings) compare as numbers, everything else as text. An unknown
// operator is false.
func Compare(left any, operator string, right any) bool {
	ln, lok := asNumber(left)
	rn, rok := asNumber(right)
	numeric := lok && rok

	switch operator {
	case "==":
		if numeric {
			return ln == rn
		}
		return asText(left) == asText(right)
	case "!=":
		if numeric {
			return ln != rn
		}
		return asText(left) != asText(right)
	case ">":
		if numeric {
			return ln > rn
		}
		return asText(left) > asText(right)
	case "<":
		if numeric {
			return ln < rn
		}
		return asText(left) < asText(right)
	case ">=":
		if numeric {
			return ln >= rn
		}
		return asText(left) >= asText(right)
	case "<=":
		if numeric {
			return ln <= rn
		}
		return asText(left) <= asText(right)
	}
	return false
}

func isFalsy(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return s == ""
	}
	n, ok := asNumber(v)
	return ok && (n == 0 || math.IsNaN(n))
}
