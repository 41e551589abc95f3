package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBank keeps one hash per engine and user, mapping memory id to its
// JSON encoding. Searches score facts by query term overlap.
type RedisBank struct {
	client *redis.Client
	prefix string
}

// NewRedisBank uses client with keys under prefix.
func NewRedisBank(client *redis.Client, prefix string) *RedisBank {
	return &RedisBank{client: client, prefix: prefix}
}

// NewRedisBankFromURL connects to a redis:// URL.
func NewRedisBankFromURL(url, prefix string) (*RedisBank, error) {
	if url == "" {
		return nil, fmt.Errorf("redis memory backend needs memory.redisUrl or REDIS_URL")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisBank(redis.NewClient(opts), prefix), nil
}

// Close closes the underlying client.
func (b *RedisBank) Close() error { return b.client.Close() }

func (b *RedisBank) key(parts ...string) string {
	k := b.prefix
	for _, p := range parts {
		if k != "" {
			k += ":"
		}
		k += p
	}
	return k
}

func (b *RedisBank) CreateEngine(ctx context.Context, displayName string) (string, error) {
	id := uuid.NewString()
	if err := b.client.HSet(ctx, b.key("engines"), id, displayName).Err(); err != nil {
		return "", fmt.Errorf("creating memory engine: %w", err)
	}
	return id, nil
}

func (b *RedisBank) Create(ctx context.Context, engineID, userID, fact string) (Memory, error) {
	if engineID == "" {
		return Memory{}, ErrEngineRequired
	}
	id := uuid.NewString()
	m := Memory{
		Name:       engineID + "/memories/" + id,
		Fact:       fact,
		UserID:     userID,
		CreateTime: time.Now().UTC(),
	}
	data, err := json.Marshal(m)
	if err != nil {
		return Memory{}, err
	}
	if err := b.client.HSet(ctx, b.key("memories", engineID, userID), id, data).Err(); err != nil {
		return Memory{}, fmt.Errorf("storing memory: %w", err)
	}
	return m, nil
}

func (b *RedisBank) List(ctx context.Context, engineID, userID string) ([]Memory, error) {
	if engineID == "" {
		return nil, ErrEngineRequired
	}
	vals, err := b.client.HGetAll(ctx, b.key("memories", engineID, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	out := make([]Memory, 0, len(vals))
	for id, v := range vals {
		var m Memory
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decoding memory %s: %w", id, err)
		}
		out = append(out, m)
	}
	newestFirst(out)
	return out, nil
}

func (b *RedisBank) Search(ctx context.Context, engineID, userID, query string, topK int) ([]Memory, error) {
	all, err := b.List(ctx, engineID, userID)
	if err != nil {
		return nil, err
	}
	return rank(all, query, topK), nil
}
