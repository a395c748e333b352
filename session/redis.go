package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr string
	DB   int
	// TTL expires saved sessions; zero keeps them until cleared.
	TTL time.Duration
	// Prefix is prepended to every key.
	Prefix string
}

// RedisStore persists sessions in redis.
type RedisStore struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a client for opts.Addr. It does not dial; use Ping to check reachability.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis store: missing address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	return &RedisStore{rdb: rdb, ttl: opts.TTL, prefix: opts.Prefix}, nil
}

// Get returns the value under the prefixed key, or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %w", ErrUnavailable, err)
	}
	return data, nil
}

// Set stores value with the configured TTL; zero means no expiry.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the prefixed key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %w", ErrUnavailable, err)
	}
	return nil
}

// Ping checks the server is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", ErrUnavailable, err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *RedisStore) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
