package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/internal/database/testutil"
	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	results map[string]error
	block   map[string]bool
	calls   []Subscription
}

func (f *fakeSender) Send(ctx context.Context, sub Subscription, _ []byte) error {
	f.mu.Lock()
	f.calls = append(f.calls, sub)
	err := f.results[sub.Endpoint]
	block := f.block[sub.Endpoint]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return &DeliveryError{Class: FailureTransient, Err: ctx.Err()}
	}
	return err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newSubscriptionStore(t *testing.T) *store.SubscriptionStore {
	t.Helper()
	subs, err := store.NewSubscriptionStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NoError(t, err)
	return subs
}

func samplePayload() notifications.Payload {
	return notifications.Generate(notifications.KindMessage, notifications.TemplateData{SenderName: "Ada"})
}

func TestDispatchWithoutSubscriptionsSucceeds(t *testing.T) {
	sender := &fakeSender{}
	dispatcher, err := NewDispatcher(newSubscriptionStore(t), sender)
	require.NoError(t, err)

	report, err := dispatcher.Dispatch(context.Background(), "user-u", samplePayload())
	require.NoError(t, err)
	require.Equal(t, "user-u", report.UserID)
	require.Empty(t, report.Results)
	require.NoError(t, report.Err())
	require.Zero(t, sender.callCount())
}

func TestDispatchRejectsStructuralErrors(t *testing.T) {
	sender := &fakeSender{}
	subs := newSubscriptionStore(t)
	_, err := subs.Upsert(context.Background(), "user-u", "https://push.example/a", "auth", "key")
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(subs, sender)
	require.NoError(t, err)

	_, err = dispatcher.Dispatch(context.Background(), " ", samplePayload())
	require.ErrorIs(t, err, ErrValidation)

	_, err = dispatcher.Dispatch(context.Background(), "user-u", notifications.Payload{Title: "only a title"})
	require.ErrorIs(t, err, ErrInvalidPayload)
	require.Zero(t, sender.callCount())
}

func TestDispatchPrunesGoneEndpointOnly(t *testing.T) {
	ctx := context.Background()
	subs := newSubscriptionStore(t)
	_, err := subs.Upsert(ctx, "user-u", "https://push.example/gone", "auth-gone", "key-gone")
	require.NoError(t, err)
	_, err = subs.Upsert(ctx, "user-u", "https://push.example/alive", "auth-alive", "key-alive")
	require.NoError(t, err)

	sender := &fakeSender{results: map[string]error{
		"https://push.example/gone": StatusError(410, ""),
	}}
	dispatcher, err := NewDispatcher(subs, sender)
	require.NoError(t, err)

	report, err := dispatcher.Dispatch(ctx, "user-u", samplePayload())
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	require.Equal(t, 1, report.Delivered())
	require.Equal(t, 1, report.Removed())
	require.Zero(t, report.Failed())
	require.Error(t, report.Err())

	remaining, err := subs.ListByUser(ctx, "user-u")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "https://push.example/alive", remaining[0].Endpoint)
	require.Equal(t, "auth-alive", remaining[0].Auth)
	require.Equal(t, "key-alive", remaining[0].P256dh)
}

func TestDispatchKeepsSubscriptionsOnTransientFailures(t *testing.T) {
	ctx := context.Background()
	subs := newSubscriptionStore(t)
	endpoints := []string{
		"https://push.example/5xx",
		"https://push.example/auth",
		"https://push.example/net",
	}
	for _, endpoint := range endpoints {
		_, err := subs.Upsert(ctx, "user-u", endpoint, "auth", "key")
		require.NoError(t, err)
	}

	sender := &fakeSender{results: map[string]error{
		"https://push.example/5xx":  StatusError(503, ""),
		"https://push.example/auth": StatusError(403, ""),
		"https://push.example/net":  errors.New("connection reset"),
	}}
	dispatcher, err := NewDispatcher(subs, sender)
	require.NoError(t, err)

	report, err := dispatcher.Dispatch(ctx, "user-u", samplePayload())
	require.NoError(t, err)
	require.Equal(t, 3, report.Failed())
	require.Zero(t, report.Removed())

	classes := map[FailureClass]int{}
	for _, result := range report.Results {
		classes[result.Class]++
	}
	require.Equal(t, 2, classes[FailureTransient])
	require.Equal(t, 1, classes[FailureAuth])

	remaining, err := subs.ListByUser(ctx, "user-u")
	require.NoError(t, err)
	require.Len(t, remaining, 3)
}

func TestDispatchBoundsStalledEndpoints(t *testing.T) {
	ctx := context.Background()
	subs := newSubscriptionStore(t)
	_, err := subs.Upsert(ctx, "user-u", "https://push.example/stalled", "auth", "key")
	require.NoError(t, err)
	_, err = subs.Upsert(ctx, "user-u", "https://push.example/fast", "auth", "key")
	require.NoError(t, err)

	sender := &fakeSender{block: map[string]bool{"https://push.example/stalled": true}}
	dispatcher, err := NewDispatcher(subs, sender, WithTimeout(50*time.Millisecond), WithMaxConcurrency(2))
	require.NoError(t, err)

	started := time.Now()
	report, err := dispatcher.Dispatch(ctx, "user-u", samplePayload())
	require.NoError(t, err)
	require.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, 1, report.Delivered())
	require.Equal(t, 1, report.Failed())
}

type panicSender struct{}

func (panicSender) Send(context.Context, Subscription, []byte) error { panic("boom") }

func TestDispatchTurnsSenderPanicIntoResult(t *testing.T) {
	ctx := context.Background()
	subs := newSubscriptionStore(t)
	_, err := subs.Upsert(ctx, "user-u", "https://push.example/a", "auth", "key")
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(subs, panicSender{})
	require.NoError(t, err)

	report, err := dispatcher.Dispatch(ctx, "user-u", samplePayload())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())
	require.Contains(t, report.Results[0].Error, "boom")
}

type failingRemoveStore struct {
	subs []models.PushSubscription
}

func (s failingRemoveStore) ListByUser(context.Context, string) ([]models.PushSubscription, error) {
	return s.subs, nil
}

func (failingRemoveStore) Remove(context.Context, string, string) error {
	return errors.New("store unavailable")
}

func TestDispatchReportsFailedRemoval(t *testing.T) {
	st := failingRemoveStore{subs: []models.PushSubscription{{UserID: "user-u", Endpoint: "https://push.example/gone"}}}
	sender := &fakeSender{results: map[string]error{"https://push.example/gone": StatusError(404, "")}}
	dispatcher, err := NewDispatcher(st, sender)
	require.NoError(t, err)

	report, err := dispatcher.Dispatch(context.Background(), "user-u", samplePayload())
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed())
	require.ErrorIs(t, report.Results[0].Err, ErrGone)
	require.Contains(t, report.Results[0].Error, "store unavailable")
}
