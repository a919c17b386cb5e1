package memory

import (
	"sync"

	"quizdeck/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		attempts: make(map[string]*app.Attempt),
	}
}

// GetOrCreate holds the store lock while create runs so one key never gets two attempts.
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
}

// Len reports how many attempts are live.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
