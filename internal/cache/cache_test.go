package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLockerExclusive(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	a := NewRedisLocker(client)
	b := NewRedisLocker(client)

	ok, err := a.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 非持有者释放不影响锁
	require.NoError(t, b.Unlock(ctx, "sweep"))
	ok, err = b.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx, "sweep"))
	ok, err = b.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = a.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkersMessageIdempotence(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	m := NewMarkers(client)

	first, err := m.TryMarkMessageProcessing(ctx, "pos_1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.TryMarkMessageProcessing(ctx, "pos_1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, m.UnmarkMessageProcessing(ctx, "pos_1"))
	retry, err := m.TryMarkMessageProcessing(ctx, "pos_1")
	require.NoError(t, err)
	assert.True(t, retry)

	require.NoError(t, m.MarkMessageProcessed(ctx, "pos_1"))
	again, err = m.TryMarkMessageProcessing(ctx, "pos_1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestMarkersJobDone(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	m := NewMarkers(client)

	done, err := m.IsJobDone(ctx, "aggregate", "2025-03-10")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, m.MarkJobDone(ctx, "aggregate", "2025-03-10"))

	done, err = m.IsJobDone(ctx, "aggregate", "2025-03-10")
	require.NoError(t, err)
	assert.True(t, done)

	done, err = m.IsJobDone(ctx, "aggregate", "2025-03-11")
	require.NoError(t, err)
	assert.False(t, done)
}

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestProtectedCache(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	pc := NewProtectedCache(client, "thing", time.Minute)

	var got cachedThing
	hit, err := pc.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, pc.Set(ctx, "a", cachedThing{Name: "x", Count: 2}))
	hit, err = pc.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, cachedThing{Name: "x", Count: 2}, got)

	require.NoError(t, pc.Set(ctx, "empty", nil))
	var empty cachedThing
	hit, err = pc.Get(ctx, "empty", &empty)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, cachedThing{}, empty)

	require.NoError(t, pc.BatchDelete(ctx, []string{"a", "empty"}))
	hit, err = pc.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
