package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis under feed:{sourceId} with the
// retention as key TTL
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreWithURL creates a store from a redis:// URL. Non-empty
// username or password override the ones in the URL.
func NewRedisStoreWithURL(url, username, password string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if username != "" {
		opts.Username = username
	}
	if password != "" {
		opts.Password = password
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	entry, err := DeserializeEntry(data)
	if err != nil {
		// Unreadable values are misses, the next Set replaces them
		slog.Warn("dropping unreadable cache entry", "key", key, "error", err)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, entry Entry, retention time.Duration) error {
	data, err := SerializeEntry(entry)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, retention).Err()
}

// Clear removes every feed entry and returns how many keys were deleted
func (r *RedisStore) Clear(ctx context.Context) (int, error) {
	var removed int
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, iter.Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
