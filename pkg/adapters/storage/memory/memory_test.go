package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStoreIsolation(t *testing.T) {
	s := NewRunStore()
	ctx := context.Background()

	run := domain.NewRun("wf", map[string]any{"value": float64(1)}, "")
	require.NoError(t, s.Save(ctx, run))

	run.Status = domain.RunStatusRunning
	run.Logs = append(run.Logs, domain.LogEntry{Message: "not saved"})

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, got.Status)
	assert.Empty(t, got.Logs)

	got.Status = domain.RunStatusFailed
	again, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, again.Status)
}

func TestRunStoreListAndDelete(t *testing.T) {
	s := NewRunStore()
	ctx := context.Background()

	older := domain.NewRun("wf", nil, "")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := domain.NewRun("wf", nil, "")
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))
	require.NoError(t, s.Save(ctx, domain.NewRun("other", nil, "")))

	runs, err := s.List(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)

	require.NoError(t, s.Delete(ctx, newer.ID))
	_, err = s.Get(ctx, newer.ID)
	assert.ErrorIs(t, err, ports.ErrRunNotFound)

	assert.Error(t, s.Save(ctx, &domain.Run{}))
}
