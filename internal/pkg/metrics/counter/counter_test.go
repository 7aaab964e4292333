package counter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T, now time.Time) (*Counter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := New(rdb)
	c.now = func() time.Time { return now }
	return c, mr
}

func TestCounter_AddAndDaily(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	c, mr := newTestCounter(t, day)

	require.NoError(t, c.Add(ctx, EventInitiatePrefix+"succeeded"))
	require.NoError(t, c.Add(ctx, EventInitiatePrefix+"succeeded"))
	require.NoError(t, c.Add(ctx, EventCallbackPrefix+"marked_paid"))

	c.now = func() time.Time { return day.AddDate(0, 0, 1) }
	require.NoError(t, c.Add(ctx, EventInitiatePrefix+"failed"))

	days, err := c.Daily(ctx, 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2025-01-11", days[0].Date)
	assert.Equal(t, int64(1), days[0].Counts["initiate:failed"])
	assert.Equal(t, "2025-01-10", days[1].Date)
	assert.Equal(t, int64(2), days[1].Counts["initiate:succeeded"])
	assert.Empty(t, days[2].Counts)

	assert.True(t, mr.TTL("payment:counters:2025-01-10") > 0)

	totals := Totals(days)
	require.Len(t, totals, 3)
	assert.Equal(t, "callback:marked_paid", totals[0].Event)
	assert.Equal(t, int64(1), totals[0].Count)
}

func TestCounter_NilIsNoop(t *testing.T) {
	var c *Counter
	assert.NoError(t, c.Add(context.Background(), "initiate:succeeded"))
	days, err := c.Daily(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, days)
}
