package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RunStore implements ports.RunStore using Redis. Each run is a JSON string
// with a TTL; a sorted set per workflow indexes run ids by creation time.
type RunStore struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
	prefix string
}

// NewRunStore creates a new Redis run store. A zero ttl keeps runs forever.
func NewRunStore(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RunStore {
	if prefix == "" {
		prefix = "dagrun"
	}
	return &RunStore{
		client: client,
		logger: logger,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Save persists a run and indexes it under its workflow
func (s *RunStore) Save(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	indexKey := s.indexKey(run.WorkflowID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.ID), data, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(run.CreatedAt.UnixNano()),
		Member: run.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, indexKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)))

	return nil
}

// Get retrieves a run
func (s *RunStore) Get(ctx context.Context, runID string) (*domain.Run, error) {
	data, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ports.ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// List returns the runs of a workflow, newest first. Index entries whose
// run has expired are pruned.
func (s *RunStore) List(ctx context.Context, workflowID string) ([]*domain.Run, error) {
	indexKey := s.indexKey(workflowID)

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Run{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}

	runs := make([]*domain.Run, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var run domain.Run
		if err := json.Unmarshal([]byte(raw), &run); err != nil {
			s.logger.Warn("skipping undecodable run",
				zap.String("run_id", ids[i]),
				zap.Error(err))
			continue
		}
		runs = append(runs, &run)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			s.logger.Warn("failed to prune run index",
				zap.String("workflow_id", workflowID),
				zap.Error(err))
		}
	}

	return runs, nil
}

// Delete removes a run and its index entry
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	run, err := s.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, ports.ErrRunNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(run.WorkflowID), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted", zap.String("run_id", runID))

	return nil
}

// runKey returns the Redis key for a run document
func (s *RunStore) runKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", s.prefix, runID)
}

// indexKey returns the Redis key for a workflow's run index
func (s *RunStore) indexKey(workflowID string) string {
	return fmt.Sprintf("%s:workflow:%s:runs", s.prefix, workflowID)
}
