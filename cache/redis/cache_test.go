package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zipgrid/cache"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts...), mr
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	ctx := context.Background()
	key := cache.Key("scope", "z/root.json")

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, key, []byte(`{"9":{"Z":[],"C":[]}}`)))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.JSONEq(t, `{"9":{"Z":[],"C":[]}}`, string(got))
	assert.True(t, mr.Exists(defaultKeyPrefix+key))
}

func TestCacheKeyPrefix(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, WithKeyPrefix("tenant-a:"))
	require.NoError(t, c.Put(context.Background(), "abc", []byte("x")))

	assert.True(t, mr.Exists("tenant-a:abc"))
	assert.False(t, mr.Exists(defaultKeyPrefix+"abc"))
}

func TestCacheTTL(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t, WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "abc", []byte("x")))

	assert.Equal(t, time.Minute, mr.TTL(defaultKeyPrefix+"abc"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "abc")
	assert.False(t, ok)
}

func TestCacheServerDown(t *testing.T) {
	t.Parallel()

	c, mr := newTestCache(t)
	mr.Close()

	_, ok := c.Get(context.Background(), "abc")
	assert.False(t, ok)
	assert.Error(t, c.Put(context.Background(), "abc", []byte("x")))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c, err := Open(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Put(context.Background(), "k", []byte("v")))
	got, ok := c.Get(context.Background(), "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	_, err = Open(context.Background(), "not a url")
	assert.Error(t, err)
}
