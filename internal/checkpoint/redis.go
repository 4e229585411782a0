package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ent0n29/ava/internal/graph"
)

// RedisStore keeps checkpoints in Redis. A zero TTL keeps sessions until
// explicitly deleted; a positive TTL lets idle sessions expire.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func checkpointKey(sessionID string) string {
	return "checkpoint:" + sessionID
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (graph.State, bool, error) {
	raw, err := s.client.Get(ctx, checkpointKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return graph.State{}, false, nil
	}
	if err != nil {
		return graph.State{}, false, fmt.Errorf("load checkpoint %s: %w", sessionID, err)
	}
	var st graph.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return graph.State{}, false, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, st graph.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, checkpointKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, checkpointKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
