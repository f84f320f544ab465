package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Values []float64 `json:"values"`
}

func TestMemoryCache_RoundTripDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(0)
	defer mc.Close()

	in := payload{Values: []float64{1, 2, 3}}
	require.NoError(t, mc.Set(ctx, "k", in, time.Minute))
	in.Values[0] = 99

	var a, b payload
	require.NoError(t, mc.Get(ctx, "k", &a))
	require.NoError(t, mc.Get(ctx, "k", &b))
	assert.Equal(t, []float64{1, 2, 3}, a.Values)
	a.Values[1] = 42
	assert.Equal(t, 2.0, b.Values[1])
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	mc := NewMemoryCache(0, WithClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "k", payload{}, time.Minute))
	now = now.Add(2 * time.Minute)

	var p payload
	err := mc.Get(ctx, "k", &p)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	mc := NewMemoryCache(0, WithMaxSize(2), WithClock(func() time.Time { return now }))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	now = now.Add(time.Second)

	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	now = now.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "a", &v))
	assert.Equal(t, 1, v)
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(time.Millisecond)
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, SeriesKey("SH600519", 120), payload{}, time.Hour))
	require.NoError(t, mc.Delete(ctx, SeriesKey("SH600519", 120)))
	var p payload
	assert.ErrorIs(t, mc.Get(ctx, "series:SH600519:120", &p), ErrCacheMiss)
}
