package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryEvictsOldestWhenFull(t *testing.T) {
	c := NewMemory(3)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("notes:%d", i)
		require.NoError(t, c.Set(ctx, key, []byte("payload"), time.Minute))
	}

	length, err := c.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, length)

	_, ok, err := c.Get(ctx, "notes:0")
	require.NoError(t, err)
	require.False(t, ok, "first-inserted key should be evicted")

	_, ok, err = c.Get(ctx, "notes:3")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryLazyExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(10)
	c.Clock = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "notes:42", []byte("payload"), 30*time.Second))

	value, ok, err := c.Get(ctx, "notes:42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	now = now.Add(31 * time.Second)

	_, ok, err = c.Get(ctx, "notes:42")
	require.NoError(t, err)
	require.False(t, ok, "expired entry must not be returned")

	length, err := c.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, length, "lazy expiry should have removed the entry")
}

func TestMemoryOverwriteKeepsInsertionOrder(t *testing.T) {
	c := NewMemory(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "notes:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "notes:2", []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, "notes:1", []byte("a2"), time.Minute))
	require.NoError(t, c.Set(ctx, "notes:3", []byte("c"), time.Minute))

	// notes:1 stays oldest despite the overwrite, so it is the one evicted.
	_, ok, err := c.Get(ctx, "notes:1")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = c.Get(ctx, "notes:2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryClear(t *testing.T) {
	c := NewMemory(5)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "notes:1", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "content:1", []byte("b"), time.Minute))
	require.NoError(t, c.Clear(ctx))

	length, err := c.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, length)

	_, ok, err := c.Get(ctx, "notes:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStats(t *testing.T) {
	c := NewMemory(5)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "notes:1", []byte("a"), time.Minute))

	_, _, _ = c.Get(ctx, "notes:1")
	_, _, _ = c.Get(ctx, "notes:2")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, 5, stats.Capacity)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.NotNil(t, stats.Oldest)
}
