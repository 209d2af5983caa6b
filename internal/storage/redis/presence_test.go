package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*PresenceStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewPresenceStoreWithClient(client, time.Hour), mr
}

func TestPresenceStore_SetOnlineAndList(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	require.NoError(t, store.SetOnline(ctx, "g1", "p2", "Bob"))
	require.NoError(t, store.SetOnline(ctx, "g1", "p1", "Ann"))

	records, err := store.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0].PlayerID)
	assert.Equal(t, "Ann", records[0].PlayerName)
	assert.True(t, records[0].Online)
	assert.True(t, records[0].LastSeen.Equal(start))
	assert.True(t, records[0].JoinedAt.Equal(start))
}

func TestPresenceStore_TouchKeepsNameAndMovesLastSeen(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	start := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	mr.SetTime(start)
	require.NoError(t, store.SetOnline(ctx, "g1", "p1", "Ann"))

	mr.SetTime(start.Add(12 * time.Second))
	require.NoError(t, store.Touch(ctx, "g1", "p1", false))

	records, err := store.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Online)
	assert.Equal(t, "Ann", records[0].PlayerName)
	assert.True(t, records[0].LastSeen.Equal(start.Add(12*time.Second)))
	assert.True(t, records[0].JoinedAt.Equal(start))
}

func TestPresenceStore_Remove(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.SetOnline(ctx, "g1", "p1", "Ann"))
	require.NoError(t, store.SetOnline(ctx, "g1", "p2", "Bob"))

	require.NoError(t, store.Remove(ctx, "g1", "p1"))
	records, err := store.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p2", records[0].PlayerID)

	require.NoError(t, store.RemoveSession(ctx, "g1"))
	records, err = store.List(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.False(t, mr.Exists("presence:g1"))
}
