package executors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPRequestParams configures an outbound call. Timeout is in milliseconds.
type HTTPRequestParams struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
	Timeout int64             `json:"timeout"`
}

// HTTPRequestExecutor performs a bounded-timeout HTTP call. Transport errors,
// including the timeout, and a non-empty body that is not JSON are executor
// failures.
type HTTPRequestExecutor struct {
	client         *http.Client
	defaultTimeout time.Duration
}

func (e *HTTPRequestExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p HTTPRequestParams
	if err := decodeParams(node.Data, &p); err != nil {
		return Result{}, err
	}
	if p.URL == "" {
		return Result{}, fmt.Errorf("url is required")
	}
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := e.defaultTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Millisecond
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if method != http.MethodGet && p.Body != nil {
		data, err := json.Marshal(p.Body)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(callCtx, method, p.URL, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	client := e.client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	var decoded any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Result{}, fmt.Errorf("invalid JSON response from %s: %w", p.URL, err)
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}

	return Result{Data: map[string]any{
		"status":     resp.StatusCode,
		"statusText": http.StatusText(resp.StatusCode),
		"headers":    headers,
		"body":       decoded,
	}}, nil
}
