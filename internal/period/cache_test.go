package period

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, date(2026, 1, 15))
	require.False(t, ok)

	cache.Set(ctx, Period{
		ID:        1,
		Name:      "2026-01",
		StartDate: date(2026, 1, 1),
		EndDate:   date(2026, 1, 31),
		Status:    StatusOpen,
	})

	p, ok := cache.Get(ctx, date(2026, 1, 15))
	require.True(t, ok)
	require.Equal(t, int64(1), p.ID)
	require.Equal(t, StatusOpen, p.Status)

	// A date outside the cached range is a miss, not a wrong hit.
	_, ok = cache.Get(ctx, date(2026, 2, 2))
	require.False(t, ok)

	cache.Invalidate(ctx)
	_, ok = cache.Get(ctx, date(2026, 1, 15))
	require.False(t, ok)
}
