package memory

import (
	"context"
	"sync"

	"timed-quiz-service/internal/app"
)

// ProfileStore is an in-memory implementation of app.StoreProvider.
type ProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*SessionStore
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]*SessionStore),
	}
}

func (p *ProfileStore) ForProfile(profileID string) app.SessionStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	if store, ok := p.profiles[profileID]; ok {
		return store
	}
	store := NewSessionStore()
	p.profiles[profileID] = store
	return store
}

// SessionStore is an in-memory key-value record for one profile.
type SessionStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		values: make(map[string]string),
	}
}

func (s *SessionStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *SessionStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *SessionStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Len reports how many keys are stored.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
