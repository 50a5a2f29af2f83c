package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	workflow_id TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	document    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_workflow_created_idx ON runs (workflow_id, created_at DESC);
`

// runRow is the stored form of a run. The full run lives in document; the
// other columns are indexed copies.
type runRow struct {
	ID         string     `db:"id"`
	WorkflowID string     `db:"workflow_id"`
	Status     string     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Document   string     `db:"document"`
}

// RunStore implements ports.RunStore on PostgreSQL
type RunStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*RunStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewRunStore(db, logger), nil
}

// NewRunStore wraps an existing connection pool
func NewRunStore(db *sqlx.DB, logger *zap.Logger) *RunStore {
	return &RunStore{db: db, logger: logger}
}

// SetPoolLimits bounds the connection pool; zero values keep the driver
// defaults.
func (s *RunStore) SetPoolLimits(maxOpen, maxIdle int) {
	if maxOpen > 0 {
		s.db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		s.db.SetMaxIdleConns(maxIdle)
	}
}

// EnsureSchema creates the runs table when missing
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Save upserts a run
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	doc, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	row := runRow{
		ID:         run.ID,
		WorkflowID: run.WorkflowID,
		Status:     string(run.Status),
		CreatedAt:  run.CreatedAt,
		FinishedAt: run.FinishedAt,
		Document:   string(doc),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, status, created_at, finished_at, document)
		VALUES (:id, :workflow_id, :status, :created_at, :finished_at, :document)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			document = EXCLUDED.document`, row)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// Get retrieves a run by id
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.Run, error) {
	var doc []byte
	err := s.db.GetContext(ctx, &doc, "SELECT document FROM runs WHERE id = $1", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return decode(doc)
}

// List returns the runs of a workflow, newest first
func (s *RunStore) List(ctx context.Context, workflowID string) ([]*domain.Run, error) {
	var docs [][]byte
	err := s.db.SelectContext(ctx, &docs,
		"SELECT document FROM runs WHERE workflow_id = $1 ORDER BY created_at DESC, id DESC", workflowID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(docs))
	for _, doc := range docs {
		run, err := decode(doc)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes a run
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = $1", runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	s.logger.Debug("run deleted", zap.String("run_id", runID))
	return nil
}

func decode(doc []byte) (*domain.Run, error) {
	var run domain.Run
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
