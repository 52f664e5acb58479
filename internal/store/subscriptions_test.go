package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/internal/database/testutil"
	"github.com/steamsedu/steams/internal/models"
)

func newSubscriptionStore(t *testing.T) *SubscriptionStore {
	t.Helper()
	store, err := NewSubscriptionStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return store
}

func TestSubscriptionUpsertOverwritesKeys(t *testing.T) {
	store := newSubscriptionStore(t)
	ctx := context.Background()

	first := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	store.timeNow = func() time.Time { return first }
	created, err := store.Upsert(ctx, "user-u", "https://push.example/e", "auth-1", "key-1")
	require.NoError(t, err)
	require.Equal(t, "auth-1", created.Auth)

	store.timeNow = func() time.Time { return first.Add(time.Hour) }
	updated, err := store.Upsert(ctx, "user-u", "https://push.example/e", "auth-2", "key-2")
	require.NoError(t, err)
	require.Equal(t, "auth-2", updated.Auth)
	require.Equal(t, "key-2", updated.P256dh)
	require.True(t, updated.CreatedAt.Equal(first))
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	rows, err := store.ListByUser(ctx, "user-u")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "auth-2", rows[0].Auth)
	require.Equal(t, "key-2", rows[0].P256dh)
}

func TestSubscriptionUpsertRequiresKey(t *testing.T) {
	store := newSubscriptionStore(t)

	_, err := store.Upsert(context.Background(), "", "https://push.example/e", "a", "k")
	require.Error(t, err)
	_, err = store.Upsert(context.Background(), "user-u", " ", "a", "k")
	require.Error(t, err)
}

func TestSubscriptionListIsScopedToUser(t *testing.T) {
	store := newSubscriptionStore(t)
	ctx := context.Background()

	for _, sub := range []models.PushSubscription{
		{UserID: "user-u", Endpoint: "https://push.example/phone"},
		{UserID: "user-u", Endpoint: "https://push.example/laptop"},
		{UserID: "user-v", Endpoint: "https://push.example/phone"},
	} {
		_, err := store.Upsert(ctx, sub.UserID, sub.Endpoint, "auth", "key")
		require.NoError(t, err)
	}

	rows, err := store.ListByUser(ctx, "user-u")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	none, err := store.ListByUser(ctx, "user-w")
	require.NoError(t, err)
	require.Empty(t, none)

	ids, err := store.ListUserIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"user-u", "user-v"}, ids)
}

func TestSubscriptionRemoveIsIdempotent(t *testing.T) {
	store := newSubscriptionStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, "user-u", "https://push.example/gone", "auth", "key")
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "user-u", "https://push.example/kept", "auth", "key")
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "user-u", "https://push.example/gone"))
	require.NoError(t, store.Remove(ctx, "user-u", "https://push.example/gone"))

	rows, err := store.ListByUser(ctx, "user-u")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "https://push.example/kept", rows[0].Endpoint)
}
