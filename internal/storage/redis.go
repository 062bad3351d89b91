package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "vision:artifact:"

// RedisStore keeps artifacts as Redis hashes that expire after ttl
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func artifactKey(id string) string {
	return redisKeyPrefix + id
}

func latestKey(kind Kind) string {
	return redisKeyPrefix + "latest:" + string(kind)
}

func (s *RedisStore) Put(ctx context.Context, requestID string, kind Kind, data []byte, contentType string) (string, error) {
	a, err := newArtifact(requestID, kind, data, contentType)
	if err != nil {
		return "", err
	}

	key := artifactKey(a.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"request_id":   a.RequestID,
			"kind":         string(a.Kind),
			"content_type": a.ContentType,
			"created_at":   a.CreatedAt.Format(time.RFC3339Nano),
			"data":         a.Data,
		})
		pipe.Expire(ctx, key, s.ttl)
		pipe.Set(ctx, latestKey(kind), a.ID, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to store artifact in Redis: %w", err)
	}

	return a.ID, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Artifact, error) {
	fields, err := s.client.HGetAll(ctx, artifactKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for artifact %s: %w", id, err)
	}

	return &Artifact{
		ID:          id,
		RequestID:   fields["request_id"],
		Kind:        Kind(fields["kind"]),
		ContentType: fields["content_type"],
		Data:        []byte(fields["data"]),
		CreatedAt:   createdAt,
	}, nil
}

func (s *RedisStore) Latest(ctx context.Context, kind Kind) (*Artifact, error) {
	id, err := s.client.Get(ctx, latestKey(kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest %s artifact: %w", kind, err)
	}
	return s.Get(ctx, id)
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
