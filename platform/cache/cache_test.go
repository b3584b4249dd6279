package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	var out entry
	found, err := c.Get(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "conf", entry{Name: "ICSE", Count: 3}, time.Minute))

	found, err = c.Get(ctx, "conf", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "ICSE", Count: 3}, out)

	require.NoError(t, c.Delete(ctx, "conf"))
	found, err = c.Get(ctx, "conf", &out)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, c.Ping(ctx))
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", entry{Name: "x"}, time.Second))

	var out entry
	found, _ := c.Get(ctx, "k", &out)
	assert.True(t, found)

	now = now.Add(2 * time.Second)
	found, _ = c.Get(ctx, "k", &out)
	assert.False(t, found)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	exerciseCache(t, NewRedisCache(client, "test:"))
}
