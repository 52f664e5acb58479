package services

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/internal/database/testutil"
	"github.com/steamsedu/steams/internal/store"
)

func browserKeys(t *testing.T) (auth, p256dh string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(secret), base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
}

func newSubscriptionService(t *testing.T) *SubscriptionService {
	t.Helper()
	subs, err := store.NewSubscriptionStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	svc, err := NewSubscriptionService(subs)
	require.NoError(t, err)
	return svc
}

func TestSubscribeUpsertsKeys(t *testing.T) {
	svc := newSubscriptionService(t)
	endpoint := "https://fcm.googleapis.com/fcm/send/device-1"

	auth1, key1 := browserKeys(t)
	_, err := svc.Subscribe(background, "user-u", endpoint, auth1, key1)
	require.NoError(t, err)

	auth2, key2 := browserKeys(t)
	_, err = svc.Subscribe(background, "user-u", endpoint, auth2, key2)
	require.NoError(t, err)

	subs, err := svc.List(background, "user-u")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, auth2, subs[0].Auth)
	require.Equal(t, key2, subs[0].P256dh)
}

func TestSubscribeValidation(t *testing.T) {
	svc := newSubscriptionService(t)
	auth, key := browserKeys(t)

	_, err := svc.Subscribe(background, "", "https://push.example/a", auth, key)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Subscribe(background, "user-u", "http://push.example/a", auth, key)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Subscribe(background, "user-u", "https://push.example/a", "", key)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Subscribe(background, "user-u", "https://push.example/a", auth, base64.RawURLEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Subscribe(background, "user-u", "https://push.example/"+strings.Repeat("x", maxEndpointLen), auth, key)
	require.ErrorIs(t, err, ErrValidation)

	subs, err := svc.List(background, "user-u")
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	svc := newSubscriptionService(t)
	auth, key := browserKeys(t)
	_, err := svc.Subscribe(background, "user-u", "https://push.example/a", auth, key)
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(background, "user-u", "https://push.example/a"))
	require.NoError(t, svc.Unsubscribe(background, "user-u", "https://push.example/a"))
	require.ErrorIs(t, svc.Unsubscribe(background, "user-u", ""), ErrValidation)
	require.ErrorIs(t, svc.Unsubscribe(background, "", "https://push.example/a"), ErrUnauthorized)
}
