package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/app"
)

// ProfileStore keeps each profile's session record in one Redis hash:
//
//	HSET quiz:profile:{profileID} {key} {value}
//
// Every write refreshes the hash TTL so abandoned records expire.
type ProfileStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfileStore(client *redis.Client, ttl time.Duration) *ProfileStore {
	return &ProfileStore{client: client, ttl: ttl}
}

func (p *ProfileStore) ForProfile(profileID string) app.SessionStore {
	return &SessionStore{client: p.client, ttl: p.ttl, key: profileKey(profileID)}
}

func profileKey(profileID string) string {
	return "quiz:profile:" + profileID
}

// SessionStore is the Redis hash of one profile.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	key    string
}

func (s *SessionStore) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SessionStore) Set(ctx context.Context, field, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Remove(ctx context.Context, field string) error {
	return s.client.HDel(ctx, s.key, field).Err()
}
