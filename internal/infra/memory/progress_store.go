package memory

import (
	"context"
	"sync"

	"campus-gateway/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressRepository,
// used when no Redis is configured and throughout the tests.
type ProgressStore struct {
	mu    sync.RWMutex
	users map[string]domain.UserProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		users: make(map[string]domain.UserProgress),
	}
}

func (s *ProgressStore) Load(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress, ok := s.users[userID]
	if !ok {
		return domain.UserProgress{}, nil
	}
	return progress.Clone(), nil
}

func (s *ProgressStore) Save(_ context.Context, userID string, progress domain.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = progress.Clone()
	return nil
}
