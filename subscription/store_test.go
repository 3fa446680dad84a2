package subscription

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestListActiveSourceIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "alice", "UCb", "Second"))
	require.NoError(t, store.Add(ctx, "alice", "UCa", "First"))
	require.NoError(t, store.Add(ctx, "alice", "UCc", "Third"))
	require.NoError(t, store.Add(ctx, "bob", "UCz", "Other"))
	require.NoError(t, store.Deactivate(ctx, "alice", "UCc"))

	ids, err := store.ListActiveSourceIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"UCa", "UCb"}, ids)

	ids, err = store.ListActiveSourceIDs(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAdd_ReactivatesSubscription(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "alice", "UCa", "Old title"))
	require.NoError(t, store.Deactivate(ctx, "alice", "UCa"))
	require.NoError(t, store.Add(ctx, "alice", "UCa", "New title"))

	subs, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Active)
	assert.Equal(t, "New title", subs[0].Title)
	assert.False(t, subs[0].CreatedAt.IsZero())
}

func TestList_IncludesInactive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "alice", "UCa", "A"))
	require.NoError(t, store.Add(ctx, "alice", "UCb", "B"))
	require.NoError(t, store.Deactivate(ctx, "alice", "UCb"))

	subs, err := store.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.True(t, subs[0].Active)
	assert.False(t, subs[1].Active)
}

func TestDeactivate_Unknown(t *testing.T) {
	store := newStore(t)
	assert.Error(t, store.Deactivate(context.Background(), "alice", "UCmissing"))
}
