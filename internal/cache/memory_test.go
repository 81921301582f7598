package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) (*MemoryCache, *time.Time) {
	t.Helper()
	c := NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCacheSetGetDelete(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "u1", "123456", 5*time.Minute))

	code, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "123456", code)

	require.NoError(t, c.Delete(ctx, "u1"))
	_, ok, err = c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheOverwrite(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", "111111", 5*time.Minute))
	require.NoError(t, c.Set(ctx, "u1", "222222", 5*time.Minute))

	code, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "222222", code)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c, now := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", "123456", 5*time.Minute))

	*now = now.Add(5*time.Minute + time.Second)
	_, ok, err := c.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheSweep(t *testing.T) {
	c, now := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "u1", "123456", time.Minute))
	require.NoError(t, c.Set(ctx, "u2", "654321", time.Hour))

	*now = now.Add(2 * time.Minute)
	c.sweep()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.entries, "u1")
	assert.Contains(t, c.entries, "u2")
}

func TestMemoryCacheDeleteAbsentKey(t *testing.T) {
	c, _ := newTestMemoryCache(t)
	assert.NoError(t, c.Delete(context.Background(), "missing"))
}
