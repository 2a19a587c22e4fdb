package memory

import (
	"context"
	"sync"
)

// AnswerCache keeps submitted quiz answer maps in memory, keyed per
// user and course.
type AnswerCache struct {
	mu      sync.RWMutex
	answers map[string]map[string]string
}

func NewAnswerCache() *AnswerCache {
	return &AnswerCache{
		answers: make(map[string]map[string]string),
	}
}

func (c *AnswerCache) SaveAnswers(_ context.Context, userID, courseID string, answers map[string]string) error {
	copied := make(map[string]string, len(answers))
	for questionID, optionID := range answers {
		copied[questionID] = optionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[c.key(userID, courseID)] = copied
	return nil
}

func (c *AnswerCache) LoadAnswers(_ context.Context, userID, courseID string) (map[string]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored, ok := c.answers[c.key(userID, courseID)]
	if !ok {
		return map[string]string{}, nil
	}
	copied := make(map[string]string, len(stored))
	for questionID, optionID := range stored {
		copied[questionID] = optionID
	}
	return copied, nil
}

func (c *AnswerCache) key(userID, courseID string) string {
	return userID + ":" + courseID
}
