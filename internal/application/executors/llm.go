package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"go.uber.org/zap"
)

const defaultLLMMaxTokens = 1024

// LLMParams configures a completion. Prompt and System are Go templates
// rendered against {data, outputs}; an empty prompt sends the input as JSON.
type LLMParams struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	System      string   `json:"system"`
	MaxTokens   int      `json:"maxTokens"`
	Temperature *float64 `json:"temperature"`
}

// LLMExecutor sends a single-turn prompt to the configured LLM client.
type LLMExecutor struct {
	client       ports.LLMClient
	defaultModel string
	maxTokens    int
	logger       *zap.Logger
}

func (e *LLMExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p LLMParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}

	scope := map[string]any{"data": input, "outputs": ec.Outputs()}
	prompt, err := renderTemplate(p.Prompt, scope)
	if err != nil {
		return Result{}, fmt.Errorf("invalid prompt: %w", err)
	}
	if prompt == "" {
		raw, err := json.Marshal(input)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode input: %w", err)
		}
		prompt = string(raw)
	}
	system, err := renderTemplate(p.System, scope)
	if err != nil {
		return Result{}, fmt.Errorf("invalid system prompt: %w", err)
	}

	req := &ports.CompletionRequest{
		Model:       p.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	if req.Model == "" {
		req.Model = e.defaultModel
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = e.maxTokens
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultLLMMaxTokens
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("LLM call failed: %w", err)
	}
	e.logger.Debug("llm completion",
		zap.String("run_id", ec.RunID()),
		zap.String("node_id", node.ID),
		zap.String("model", resp.Model),
		zap.Int64("input_tokens", resp.InputTokens),
		zap.Int64("output_tokens", resp.OutputTokens),
		zap.Duration("latency", time.Since(start)))

	return Result{Data: map[string]any{
		"content":    resp.Content,
		"model":      resp.Model,
		"stopReason": resp.StopReason,
		"usage": map[string]any{
			"inputTokens":  resp.InputTokens,
			"outputTokens": resp.OutputTokens,
		},
	}}, nil
}

func renderTemplate(src string, data any) (string, error) {
	if src == "" {
		return "", nil
	}
	tpl, err := template.New("prompt").Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
