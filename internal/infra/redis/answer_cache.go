package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnswerCache stores submitted answer maps as a Redis hash per user and
// course: HSET review:{userID}:{courseID} {questionID} {optionID}.
// Entries expire; the review screen only needs them shortly after a
// submission.
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redis.Client, ttl time.Duration) *AnswerCache {
	return &AnswerCache{client: client, ttl: ttl}
}

func (c *AnswerCache) SaveAnswers(ctx context.Context, userID, courseID string, answers map[string]string) error {
	key := c.key(userID, courseID)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	if len(answers) > 0 {
		fields := make(map[string]interface{}, len(answers))
		for questionID, optionID := range answers {
			fields[questionID] = optionID
		}
		pipe.HSet(ctx, key, fields)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *AnswerCache) LoadAnswers(ctx context.Context, userID, courseID string) (map[string]string, error) {
	stored, err := c.client.HGetAll(ctx, c.key(userID, courseID)).Result()
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (c *AnswerCache) key(userID, courseID string) string {
	return "review:" + userID + ":" + courseID
}
