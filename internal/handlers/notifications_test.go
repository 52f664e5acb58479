package handlers_test

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/internal/handlers/testutil"
	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/push"
)

type keyPair struct {
	Auth   string `json:"auth"`
	P256dh string `json:"p256dh"`
}

func newKeys(t *testing.T) keyPair {
	t.Helper()

	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return keyPair{
		Auth:   base64.RawURLEncoding.EncodeToString(secret),
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
	}
}

func subscribe(t *testing.T, env *testutil.Env, token, endpoint string, keys keyPair) {
	t.Helper()
	resp := env.Request(http.MethodPost, "/api/notifications/subscribe", map[string]any{
		"endpoint": endpoint,
		"keys":     keys,
	}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

type reportPayload struct {
	UserID    string        `json:"userId"`
	Delivered int           `json:"delivered"`
	Removed   int           `json:"removed"`
	Failed    int           `json:"failed"`
	Results   []push.Result `json:"results"`
}

func TestSubscribeUpsertsPerEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")
	token := env.Token(ada)

	endpoint := "https://fcm.googleapis.com/fcm/send/device-1"
	first, second := newKeys(t), newKeys(t)
	subscribe(t, env, token, endpoint, first)
	subscribe(t, env, token, endpoint, second)

	var rows []models.PushSubscription
	require.NoError(t, env.DB.Where("user_id = ?", ada.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, second.Auth, rows[0].Auth)
	require.Equal(t, second.P256dh, rows[0].P256dh)

	resp := env.Request(http.MethodGet, "/api/notifications/subscriptions", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotContains(t, resp.Body.String(), second.Auth, "key material must not be echoed")
}

func TestSubscribeRejectsInvalidInput(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token(env.CreateUser("Ada"))
	keys := newKeys(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "plain http endpoint", body: map[string]any{"endpoint": "http://push.example/x", "keys": keys}},
		{name: "missing keys", body: map[string]any{"endpoint": "https://push.example/x"}},
		{name: "malformed p256dh", body: map[string]any{"endpoint": "https://push.example/x", "keys": keyPair{Auth: keys.Auth, P256dh: "bm90LWEta2V5"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.Request(http.MethodPost, "/api/notifications/subscribe", tc.body, token)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		})
	}
}

func TestSendNotificationPrunesGoneEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")
	ben := env.CreateUser("Ben")
	benToken := env.Token(ben)

	live := "https://push.example/ben-phone"
	gone := "https://push.example/ben-old-laptop"
	flaky := "https://push.example/ben-tablet"
	subscribe(t, env, benToken, live, newKeys(t))
	subscribe(t, env, benToken, gone, newKeys(t))
	subscribe(t, env, benToken, flaky, newKeys(t))

	env.Push.Fail(gone, push.StatusError(http.StatusGone, "expired"))
	env.Push.Fail(flaky, push.StatusError(http.StatusServiceUnavailable, "try later"))

	resp := env.Request(http.MethodPost, "/api/notifications/send", map[string]any{
		"userId": ben.ID,
		"notification": map[string]any{
			"title": "New Message",
			"body":  "Ada sent you a message",
			"data":  map[string]any{"url": "/messages", "type": "message"},
		},
	}, env.Token(ada))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Equal(t, ben.ID, report.UserID)
	require.Equal(t, 1, report.Delivered)
	require.Equal(t, 1, report.Removed)
	require.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)

	require.Equal(t, []string{live}, env.Push.Delivered())

	var endpoints []string
	require.NoError(t, env.DB.Model(&models.PushSubscription{}).Where("user_id = ?", ben.ID).Order("endpoint").Pluck("endpoint", &endpoints).Error)
	require.Equal(t, []string{flaky, live}, endpoints)
}

func TestSendNotificationFromTemplate(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")
	subscribe(t, env, env.Token(ada), "https://push.example/ada", newKeys(t))

	resp := env.Request(http.MethodPost, "/api/notifications/send", map[string]any{
		"userId": ada.ID,
		"kind":   "achievement",
		"data":   map[string]any{"achievementName": "Fraction Master"},
	}, env.Token(ada))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Equal(t, 1, report.Delivered)
}

func TestSendNotificationRejectsStructuralErrors(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")
	token := env.Token(ada)

	cases := []struct {
		name string
		body map[string]any
	}{
		{name: "missing user", body: map[string]any{"kind": "reminder"}},
		{name: "no payload or kind", body: map[string]any{"userId": ada.ID}},
		{name: "unknown kind", body: map[string]any{"userId": ada.ID, "kind": "fireworks"}},
		{name: "payload without title", body: map[string]any{"userId": ada.ID, "notification": map[string]any{"body": "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.Request(http.MethodPost, "/api/notifications/send", tc.body, token)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
		})
	}
}

func TestSendNotificationWithoutSubscriptions(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")

	resp := env.Request(http.MethodPost, "/api/notifications/send", map[string]any{
		"userId": ada.ID,
		"kind":   "reminder",
	}, env.Token(ada))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Empty(t, report.Results)
}

func TestUnsubscribeAndVAPIDKey(t *testing.T) {
	env := testutil.NewEnv(t)
	ada := env.CreateUser("Ada")
	token := env.Token(ada)

	endpoint := "https://push.example/ada"
	subscribe(t, env, token, endpoint, newKeys(t))

	for i := 0; i < 2; i++ {
		resp := env.Request(http.MethodDelete, "/api/notifications/subscribe", map[string]string{"endpoint": endpoint}, token)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	var count int64
	require.NoError(t, env.DB.Model(&models.PushSubscription{}).Count(&count).Error)
	require.Zero(t, count)

	resp := env.Request(http.MethodGet, "/api/notifications/vapid-key", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var key struct {
		PublicKey string `json:"publicKey"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &key)
	require.Equal(t, testutil.VAPIDPublicKey, key.PublicKey)
}
