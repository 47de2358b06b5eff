package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache is a ProgramCache shared between processes through Redis
type RedisCache struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// ConnectRedis opens a client and verifies it with PING.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return rdb, nil
}

// NewRedisCache creates a Redis cache whose keys expire after retention
func NewRedisCache(client *redis.Client, prefix string, retention time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "kyotei:program:"
	}
	return &RedisCache{client: client, prefix: prefix, retention: retention}
}

func (r *RedisCache) key(k string) string { return r.prefix + k }

// Get retrieves a cached program
func (r *RedisCache) Get(ctx context.Context, key string) (*CachedProgram, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var p CachedProgram
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &p, true, nil
}

// Set stores a program with the retention TTL
func (r *RedisCache) Set(ctx context.Context, key string, program *CachedProgram) error {
	b, err := json.Marshal(program)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), b, r.retention).Err()
}

// Len counts keys under the prefix
func (r *RedisCache) Len(ctx context.Context) int {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

// Clear deletes every key under the prefix
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
