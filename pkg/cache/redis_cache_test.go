package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache connects to the Redis named by CARSCOUT_TEST_REDIS_ADDR or
// skips the test.
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	addr := os.Getenv("CARSCOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CARSCOUT_TEST_REDIS_ADDR not set")
	}

	c := NewRedisCache(Options{Addr: addr, TTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Ping(ctx))
	return c
}

func TestRedisCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := "carscout:test:" + uuid.NewString()

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte(`{"pros":["fast"]}`)))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"pros":["fast"]}`, string(got))
}

func TestRedisCache_Unreachable(t *testing.T) {
	c := NewRedisCache(Options{Addr: "127.0.0.1:1"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok, err := c.Get(ctx, "missing")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}
