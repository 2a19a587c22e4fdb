package memory

import (
	"context"
	"log"
	"sync"

	"campus-gateway/internal/domain"
)

// ResultLog is a stand-in result sink for demo mode: it records scored
// submissions in memory instead of POSTing them upstream.
type ResultLog struct {
	mu      sync.Mutex
	results map[string][]domain.QuizResult
}

func NewResultLog() *ResultLog {
	return &ResultLog{
		results: make(map[string][]domain.QuizResult),
	}
}

func (l *ResultLog) SubmitResult(_ context.Context, userID string, settings domain.QuizSettings, result domain.QuizResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := userID + ":" + settings.CourseID
	l.results[key] = append(l.results[key], result)
	log.Printf("quiz result recorded: user=%s course=%s score=%d timeout=%v", userID, settings.CourseID, result.Score, result.Timeout)
	return nil
}

// Results returns the submissions recorded for a user and course.
func (l *ResultLog) Results(userID, courseID string) []domain.QuizResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := l.results[userID+":"+courseID]
	out := make([]domain.QuizResult, len(stored))
	copy(out, stored)
	return out
}
