package redis

import (
	"context"
	"encoding/json"
	"log"

	"campus-gateway/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProgressStore persists each user's whole progress collection as one
// JSON blob under a user-namespaced key, mirroring how the browser client
// kept it in localStorage. There is no TTL: progress outlives sessions.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) Load(ctx context.Context, userID string) (domain.UserProgress, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return domain.UserProgress{}, nil
	}
	if err != nil {
		return nil, err
	}

	var progress domain.UserProgress
	if err := json.Unmarshal(raw, &progress); err != nil {
		// Corrupt blobs are replaced with an empty collection rather than
		// surfaced; the cache is not the source of truth.
		log.Printf("corrupt progress blob for user %s, resetting: %v", userID, err)
		_ = s.client.Del(ctx, s.key(userID)).Err()
		return domain.UserProgress{}, nil
	}
	if progress == nil {
		progress = domain.UserProgress{}
	}
	return progress, nil
}

func (s *ProgressStore) Save(ctx context.Context, userID string, progress domain.UserProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), raw, 0).Err()
}

func (s *ProgressStore) key(userID string) string {
	return "progress:" + userID
}
