package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Minute)
	v, err := cs.Get(ctx, "tools", "catalog")
	assert.NoError(err)
	assert.Empty(v)

	assert.NoError(cs.Set(ctx, "tools", "catalog", "abc"))
	v, err = cs.Get(ctx, "tools", "catalog")
	assert.NoError(err)
	assert.Equal("abc", v)

	assert.NoError(cs.Purge(ctx, "tools", "catalog"))
	v, err = cs.Get(ctx, "tools", "catalog")
	assert.NoError(err)
	assert.Empty(v)
}

func TestMemCacheStoreSharedCapacity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(2, time.Minute)
	assert.NoError(cs.Set(ctx, "tools", "catalog", "abc"))
	assert.NoError(cs.Set(ctx, "message-seen", "guild-1/m1", "1"))
	assert.NoError(cs.Set(ctx, "message-seen", "guild-1/m2", "1"))
	assert.Equal(2, cs.Len())

	// the oldest entry, from another cache name, was evicted
	v, err := cs.Get(ctx, "tools", "catalog")
	assert.NoError(err)
	assert.Empty(v)
	v, err = cs.Get(ctx, "message-seen", "guild-1/m2")
	assert.NoError(err)
	assert.Equal("1", v)
}

func TestJSONHelpers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Minute)
	var out []map[string]any
	ok, err := GetJSON(ctx, cs, "tools", "catalog", &out)
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(SetJSON(ctx, cs, "tools", "catalog", []map[string]any{{"name": "warn_user"}}))
	ok, err = GetJSON(ctx, cs, "tools", "catalog", &out)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("warn_user", out[0]["name"])

	// corrupt entries are dropped
	assert.NoError(cs.Set(ctx, "tools", "bad", "{not json"))
	ok, err = GetJSON(ctx, cs, "tools", "bad", &out)
	assert.NoError(err)
	assert.False(ok)
	v, _ := cs.Get(ctx, "tools", "bad")
	assert.Empty(v)
}

func TestSeenBefore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, time.Minute)
	seen, err := SeenBefore(ctx, cs, "msg", "1001")
	assert.NoError(err)
	assert.False(seen)
	seen, err = SeenBefore(ctx, cs, "msg", "1001")
	assert.NoError(err)
	assert.True(seen)
	seen, err = SeenBefore(ctx, cs, "msg", "1002")
	assert.NoError(err)
	assert.False(seen)
}
