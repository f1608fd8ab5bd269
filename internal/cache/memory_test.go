package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCacheWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "activities", []byte("[]"), time.Minute))

	got, err := c.Get(ctx, "activities")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))

	got[0] = 'x'
	got, _ = c.Get(ctx, "activities")
	assert.Equal(t, "[]", string(got))

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "activities")
	assert.True(t, IsMiss(err))
	assert.Equal(t, 1, c.Sweep())
	assert.Zero(t, c.Len())
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, c, "k", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	require.NoError(t, GetJSON(ctx, c, "k", &out))
	assert.Equal(t, 1, out["a"])

	require.NoError(t, c.Delete(ctx, "k", "missing"))
	assert.ErrorIs(t, GetJSON(ctx, c, "k", &out), ErrCacheMiss)
}
