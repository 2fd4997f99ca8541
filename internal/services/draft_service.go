package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftStore holds in-progress answer text so a reload or the expiry
// auto-submit can recover what the candidate had typed or dictated.
type DraftStore interface {
	Set(ctx context.Context, sessionID string, index int, text string) error
	Append(ctx context.Context, sessionID string, index int, text string) error
	Get(ctx context.Context, sessionID string, index int) (string, error)
	Clear(ctx context.Context, sessionID string, index int) error
}

type redisDraftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDraftStore(rdb *redis.Client) DraftStore {
	return &redisDraftStore{rdb: rdb, ttl: 2 * time.Hour}
}

func draftKey(sessionID string, index int) string {
	return fmt.Sprintf("session:%s:draft:%d", sessionID, index)
}

func (s *redisDraftStore) Set(ctx context.Context, sessionID string, index int, text string) error {
	return s.rdb.Set(ctx, draftKey(sessionID, index), text, s.ttl).Err()
}

func (s *redisDraftStore) Append(ctx context.Context, sessionID string, index int, text string) error {
	key := draftKey(sessionID, index)
	pipe := s.rdb.TxPipeline()
	pipe.Append(ctx, key, text)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisDraftStore) Get(ctx context.Context, sessionID string, index int) (string, error) {
	val, err := s.rdb.Get(ctx, draftKey(sessionID, index)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *redisDraftStore) Clear(ctx context.Context, sessionID string, index int) error {
	return s.rdb.Del(ctx, draftKey(sessionID, index)).Err()
}
