package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
)

// RunStore implements ports.RunStore with an in-memory map. Runs are deep
// copied on the way in and out so callers never share state with the store.
type RunStore struct {
	runs map[string]*domain.Run
	mu   sync.RWMutex
}

// NewRunStore creates a new in-memory run store
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*domain.Run),
	}
}

// Save stores a copy of the run
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	cp, err := run.Clone()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cp
	return nil
}

// Get returns a copy of the stored run
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, runID)
	}
	return run.Clone()
}

// List returns the runs of a workflow, newest first
func (s *RunStore) List(ctx context.Context, workflowID string) ([]*domain.Run, error) {
	s.mu.RLock()
	var matched []*domain.Run
	for _, run := range s.runs {
		if run.WorkflowID == workflowID {
			matched = append(matched, run)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := make([]*domain.Run, 0, len(matched))
	for _, run := range matched {
		cp, err := run.Clone()
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Delete removes a run
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}
