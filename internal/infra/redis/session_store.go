package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quizdeck/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Attempts stay in a local map so their timers and subscribers run in process;
// Redis carries a liveness marker per key that other instances can inspect.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*app.Attempt),
	}
}

func (s *SessionStore) GetOrCreate(key string, create func() (*app.Attempt, error)) (*app.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[key]; ok && !attempt.Closed() {
		return attempt, nil
	}
	attempt, err := create()
	if err != nil {
		return nil, err
	}
	s.attempts[key] = attempt
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(key), attempt.ID(), s.ttl).Err()
	return attempt, nil
}

func (s *SessionStore) Get(key string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[key]
	return attempt, ok
}

// Remove drops key unless it has already been taken over by a newer attempt.
func (s *SessionStore) Remove(key string, attempt *app.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.attempts[key]; !ok || current != attempt {
		return
	}
	delete(s.attempts, key)
	_ = s.client.Del(context.Background(), s.key(key)).Err()
}

// Live reports whether any instance holds a live attempt for key.
func (s *SessionStore) Live(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	return n > 0, err
}

func (s *SessionStore) key(key string) string {
	return "quiz:session:" + key
}
