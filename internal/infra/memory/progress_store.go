package memory

import (
	"context"
	"sync"

	"quizdeck/internal/domain"
)

// ProgressStore keeps checkpoints and history in process memory.
type ProgressStore struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.Checkpoint
	history     []domain.HistoryEntry
	recorded    map[string]struct{}
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		checkpoints: make(map[string]domain.Checkpoint),
		recorded:    make(map[string]struct{}),
	}
}

func (s *ProgressStore) LoadCheckpoint(_ context.Context, key domain.CheckpointKey) (domain.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[key.String()]
	if !ok {
		return domain.Checkpoint{}, false, nil
	}
	return cloneCheckpoint(cp), true, nil
}

func (s *ProgressStore) SaveCheckpoint(_ context.Context, key domain.CheckpointKey, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key.String()] = cloneCheckpoint(cp)
	return nil
}

func (s *ProgressStore) DeleteCheckpoint(_ context.Context, key domain.CheckpointKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, key.String())
	return nil
}

// AppendHistory ignores a second entry for an attempt id that is already recorded.
func (s *ProgressStore) AppendHistory(_ context.Context, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.AttemptID != "" {
		if _, dup := s.recorded[entry.AttemptID]; dup {
			return nil
		}
		s.recorded[entry.AttemptID] = struct{}{}
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *ProgressStore) LoadHistory(_ context.Context) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoryEntry, len(s.history))
	copy(out, s.history)
	return out, nil
}

func cloneCheckpoint(cp domain.Checkpoint) domain.Checkpoint {
	answers := make(map[string]string, len(cp.Answers))
	for k, v := range cp.Answers {
		answers[k] = v
	}
	answered := make([]string, len(cp.Answered))
	copy(answered, cp.Answered)
	return domain.Checkpoint{
		QuestionIndex: cp.QuestionIndex,
		Answers:       answers,
		Score:         cp.Score,
		Answered:      answered,
	}
}
