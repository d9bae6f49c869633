package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-lookup/internal/models"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, ttl, zap.NewNop()), mr
}

func sampleSession(id string) *Session {
	s := New(id, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	gen := s.Submit(models.WeatherQuery{City: "北京", Resolved: "beijing"})
	_ = s.Succeed(gen, models.Snapshot{City: "Beijing", Temperature: 3.5, Icon: "01d"})
	return s
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10, zap.NewNop())
	ctx := context.Background()

	s := sampleSession("a")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	got.RetryCount = 2
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, again.RetryCount, "stored copy must not alias callers")
}

func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10, zap.NewNop())
	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 10, zap.NewNop())
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("a")))
	require.NoError(t, store.Save(ctx, sampleSession("b")))

	now = now.Add(2 * time.Minute)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	swept, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 0, store.GetStats(ctx)["sessions"])
}

func TestMemoryStore_EvictsOldestWhenFull(t *testing.T) {
	store := NewMemoryStore(time.Minute, 2, zap.NewNop())
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("a")))
	now = now.Add(time.Second)
	require.NoError(t, store.Save(ctx, sampleSession("b")))
	now = now.Add(time.Second)
	require.NoError(t, store.Save(ctx, sampleSession("c")))

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "c")
	assert.NoError(t, err)

	stats := store.GetStats(ctx)
	assert.Equal(t, 2, stats["sessions"])
	assert.Equal(t, 1, stats["evicted"])
}

func TestMemoryStore_ResaveDoesNotEvict(t *testing.T) {
	store := NewMemoryStore(time.Minute, 1, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("a")))
	require.NoError(t, store.Save(ctx, sampleSession("a")))
	assert.Equal(t, 0, store.GetStats(ctx)["evicted"])
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	s := sampleSession("a")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, StateSuccess, got.State)
	assert.Equal(t, "beijing", got.Query.Resolved)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, 3.5, got.Snapshot.Temperature)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisStore_Miss(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	_, err := store.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("a")))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"a"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_DeleteAndStats(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSession("a")))
	require.NoError(t, store.Save(ctx, sampleSession("b")))
	assert.Equal(t, 2, store.GetStats(ctx)["sessions"])

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "ghost"))
	assert.Equal(t, 1, store.GetStats(ctx)["sessions"])

	swept, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()

	_, err = Connect(context.Background(), "not-a-url")
	require.Error(t, err)
}
