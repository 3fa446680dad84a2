package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := NewRedisStoreWithURL("redis://"+mr.Addr()+"/0", "", "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	entry := Entry{Items: sampleItems("UC1"), ExpiresAt: time.Now().Add(30 * time.Minute).UTC()}
	require.NoError(t, store.Set(ctx, Key("UC1"), entry, time.Hour))

	assert.True(t, mr.Exists("feed:UC1"))
	assert.Equal(t, time.Hour, mr.TTL("feed:UC1"))

	got, found, err := store.Get(ctx, Key("UC1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.ExpiresAt.Equal(entry.ExpiresAt))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "v1", got.Items[0].VideoID)
	assert.Equal(t, "UC1", got.Items[0].SourceID)
}

func TestRedisStore_Retention(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, Key("UC1"), Entry{Items: sampleItems("UC1")}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, Key("UC1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_UnreadableValueIsMiss(t *testing.T) {
	store, mr := newRedisStore(t)
	require.NoError(t, mr.Set("feed:UC1", "not json"))

	_, found, err := store.Get(context.Background(), Key("UC1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_UnavailableIsError(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), Key("UC1"))
	assert.Error(t, err)
}

func TestRedisStore_Clear(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("session:abc", "keep"))
	for _, id := range []string{"UC1", "UC2", "UC3"} {
		require.NoError(t, store.Set(ctx, Key(id), Entry{Items: sampleItems(id)}, time.Hour))
	}

	removed, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.True(t, mr.Exists("session:abc"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_BackingExpiringCache(t *testing.T) {
	store, _ := newRedisStore(t)
	f := &spyFetcher{items: sampleItems("UC1")}
	c := New(f, store, Options{BaseTTL: time.Hour, SplayMax: time.Minute})

	for i := 0; i < 3; i++ {
		items, err := c.Get(context.Background(), "UC1")
		require.NoError(t, err)
		assert.Len(t, items, 2)
	}
	assert.Equal(t, 1, f.Calls())
}
