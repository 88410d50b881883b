package cachestore

import (
	"context"
	"encoding/json"
)

type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// Returns false (with no error) on a cache miss.
func GetJSON(ctx context.Context, c CacheStore, name, key string, out any) (bool, error) {
	raw, err := c.Get(ctx, name, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// stale or corrupt entry; treat as a miss
		_ = c.Purge(ctx, name, key)
		return false, nil
	}
	return true, nil
}

func SetJSON(ctx context.Context, c CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.Set(ctx, name, key, string(b))
}

// Marks key as seen and reports whether it had already been marked inside the cache TTL.
//
// Not atomic across processes: two concurrent deliveries can both observe "unseen".
func SeenBefore(ctx context.Context, c CacheStore, name, key string) (bool, error) {
	v, err := c.Get(ctx, name, key)
	if err != nil {
		return false, err
	}
	if v != "" {
		return true, nil
	}
	return false, c.Set(ctx, name, key, "1")
}
