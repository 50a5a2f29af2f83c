package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *RunStore {
	t.Helper()
	dsn := os.Getenv("DAGRUN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DAGRUN_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))
	// Idempotent.
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestRunStoreUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := domain.NewRun("wf-"+uuid.NewString(), map[string]any{"value": float64(5)}, "carol")
	require.NoError(t, s.Save(ctx, run))

	run.Status = domain.RunStatusSuccess
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Output = map[string]any{"value": float64(10)}
	run.Logs = append(run.Logs,
		domain.LogEntry{Level: domain.LogLevelInfo, Message: "one", Timestamp: finished},
		domain.LogEntry{Level: domain.LogLevelInfo, Message: "two", Timestamp: finished},
	)
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, got.Status)
	assert.Equal(t, run.Output, got.Output)
	require.Len(t, got.Logs, 2)
	assert.Equal(t, "one", got.Logs[0].Message)
	assert.Equal(t, "two", got.Logs[1].Message)

	require.NoError(t, s.Delete(ctx, run.ID))
	_, err = s.Get(ctx, run.ID)
	assert.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestRunStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	wf := "wf-" + uuid.NewString()

	older := domain.NewRun(wf, nil, "")
	older.CreatedAt = time.Now().Add(-time.Hour).UTC()
	newer := domain.NewRun(wf, nil, "")
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	runs, err := s.List(ctx, wf)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}
