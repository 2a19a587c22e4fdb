package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"campus-gateway/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (upstream API,
// Postgres mirror).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, courseID string) (domain.Quiz, error)
}

// QuizRepository caches full quiz content as a JSON blob in Redis
// (SET quizcache:{courseID}) and falls back to the loader on a miss.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, courseID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, courseID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(courseID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if quiz, ok := r.cached(ctx, courseID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, courseID)
		if err != nil {
			return domain.Quiz{}, err
		}

		raw, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := r.client.Set(ctx, r.key(courseID), raw, r.ttlWithJitter()).Err(); err != nil {
			// Caching is best effort; the loaded quiz is still good.
			log.Printf("cache quiz for course %s: %v", courseID, err)
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) cached(ctx context.Context, courseID string) (domain.Quiz, bool) {
	raw, err := r.client.Get(ctx, r.key(courseID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		_ = r.client.Del(ctx, r.key(courseID)).Err()
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) key(courseID string) string {
	return "quizcache:" + courseID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
