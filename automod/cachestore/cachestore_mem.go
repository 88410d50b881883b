package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Single-process cache, used when no redis URL is configured. Holds the decision-service tool catalog and the processed-message markers; both are lost on restart, which only means one extra catalog fetch and a window where a redelivered message can be moderated twice.
//
// Entries from every cache name share one LRU, so capacity bounds the total entry count.
type MemCacheStore struct {
	Data *expirable.LRU[string, string]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

// "message-seen/guild-1/m1"
func scopedKey(name, key string) string {
	return name + "/" + key
}

// Returns "" on a miss or an expired entry.
func (s *MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, _ := s.Data.Get(scopedKey(name, key))
	return v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, val string) error {
	s.Data.Add(scopedKey(name, key), val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(scopedKey(name, key))
	return nil
}

// Number of live entries across all cache names.
func (s *MemCacheStore) Len() int {
	return s.Data.Len()
}
