package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quizdeck/internal/domain"
)

const (
	historyKey         = "quiz:history"
	historyAttemptsKey = "quiz:history:attempts"
)

// ProgressStore keeps checkpoints as JSON strings and the history log as a Redis list.
// A set of recorded attempt ids makes AppendHistory idempotent.
type ProgressStore struct {
	client        *redis.Client
	checkpointTTL time.Duration
}

// NewProgressStore returns a store whose checkpoints expire after checkpointTTL; zero keeps them forever.
func NewProgressStore(client *redis.Client, checkpointTTL time.Duration) *ProgressStore {
	return &ProgressStore{client: client, checkpointTTL: checkpointTTL}
}

func (s *ProgressStore) LoadCheckpoint(ctx context.Context, key domain.CheckpointKey) (domain.Checkpoint, bool, error) {
	raw, err := s.client.Get(ctx, checkpointKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, err
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("%w: %v", domain.ErrMalformedCheckpoint, err)
	}
	return cp, true, nil
}

func (s *ProgressStore) SaveCheckpoint(ctx context.Context, key domain.CheckpointKey, cp domain.Checkpoint) error {
	raw, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, checkpointKey(key), raw, s.checkpointTTL).Err()
}

func (s *ProgressStore) DeleteCheckpoint(ctx context.Context, key domain.CheckpointKey) error {
	return s.client.Del(ctx, checkpointKey(key)).Err()
}

func (s *ProgressStore) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if entry.AttemptID != "" {
		added, err := s.client.SAdd(ctx, historyAttemptsKey, entry.AttemptID).Result()
		if err != nil {
			return err
		}
		if added == 0 {
			return nil
		}
	}
	if err := s.client.RPush(ctx, historyKey, raw).Err(); err != nil {
		if entry.AttemptID != "" {
			_ = s.client.SRem(ctx, historyAttemptsKey, entry.AttemptID).Err()
		}
		return err
	}
	return nil
}

func (s *ProgressStore) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	items, err := s.client.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(items))
	for _, item := range items {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func checkpointKey(key domain.CheckpointKey) string {
	return "quiz:checkpoint:" + key.String()
}
