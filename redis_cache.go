package pubstatic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores rendered pages in Redis so several server processes
// share one set of pages. Keys carry no expiry; staleness is judged from
// Page.GeneratedAt.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

var _ PageBackend = (*RedisBackend)(nil)

// NewRedisBackend wraps client. Every key is prefixed with prefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(path string) string {
	return r.prefix + "page:" + path
}

// Load returns the cached page for path.
func (r *RedisBackend) Load(ctx context.Context, path string) (Page, bool, error) {
	data, err := r.client.Get(ctx, r.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, false, nil
	}
	if err != nil {
		return Page{}, false, fmt.Errorf("redis get %s: %w", path, err)
	}
	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return Page{}, false, fmt.Errorf("decode cached page %s: %w", path, err)
	}
	return page, true, nil
}

// Save stores page under its path.
func (r *RedisBackend) Save(ctx context.Context, page Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode page %s: %w", page.Path, err)
	}
	if err := r.client.Set(ctx, r.key(page.Path), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", page.Path, err)
	}
	return nil
}

// Delete removes the page for path.
func (r *RedisBackend) Delete(ctx context.Context, path string) error {
	if err := r.client.Del(ctx, r.key(path)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", path, err)
	}
	return nil
}

// List returns every page under the prefix.
func (r *RedisBackend) List(ctx context.Context) ([]Page, error) {
	var pages []Page
	iter := r.client.Scan(ctx, 0, r.prefix+"page:*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", iter.Val(), err)
		}
		var page Page
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode cached page %s: %w", iter.Val(), err)
		}
		pages = append(pages, page)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return pages, nil
}

// Ping checks that Redis is reachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
