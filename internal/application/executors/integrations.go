package executors

import (
	"context"
	"fmt"

	"github.com/aescanero/dagrun/internal/domain"
)

// Integration nodes stand in for external systems: they record the action in
// the run log and succeed without performing I/O.

// EmailParams describes a message. SecretID references stored credentials.
type EmailParams struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	SecretID string `json:"secretId"`
}

// EmailExecutor simulates sending an email.
type EmailExecutor struct{}

func (e *EmailExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p EmailParams
	_ = decodeParams(node.Data, &p)

	ec.Log(domain.LogLevelInfo, fmt.Sprintf("Email sent to %s: %s", p.To, p.Subject), node.ID, nil)
	return Result{Data: map[string]any{"sent": true, "to": p.To, "subject": p.Subject}}, nil
}

// DatabaseQueryParams holds the statement. SecretID references stored
// credentials.
type DatabaseQueryParams struct {
	Query    string `json:"query"`
	SecretID string `json:"secretId"`
}

// DatabaseQueryExecutor simulates running a query.
type DatabaseQueryExecutor struct{}

func (e *DatabaseQueryExecutor) Execute(ctx context.Context, node domain.Node, input any, ec ExecContext) (Result, error) {
	var p DatabaseQueryParams
	_ = decodeParams(node.Data, &p)

	ec.Log(domain.LogLevelInfo, fmt.Sprintf("Executing query: %s", p.Query), node.ID, nil)
	return Result{Data: map[string]any{"results": []any{}, "rowCount": 0}}, nil
}
