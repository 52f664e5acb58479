package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/database/testutil"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/store"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events map[string][]realtime.Event
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{events: make(map[string][]realtime.Event)}
}

func (r *recordingBroadcaster) Broadcast(userID string, event realtime.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[userID] = append(r.events[userID], event)
	return 1
}

func (r *recordingBroadcaster) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, events := range r.events {
		n += len(events)
	}
	return n
}

func (r *recordingBroadcaster) forUser(userID string) []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events[userID]...)
}

type device struct {
	id     string
	events chan realtime.Event
}

func newDevice(id string) *device {
	return &device{id: id, events: make(chan realtime.Event, 16)}
}

func (d *device) ID() string { return d.id }
func (d *device) Close()     {}

func (d *device) Enqueue(event realtime.Event) bool {
	select {
	case d.events <- event:
		return true
	default:
		return false
	}
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithUsers(
		testutil.User("user-a", "Ada"),
		testutil.User("user-b", "Ben"),
	))
}

func newMessageServiceWith(t *testing.T, db *gorm.DB, rooms Broadcaster) *MessageService {
	t.Helper()
	messages, err := store.NewMessageStore(db)
	require.NoError(t, err)
	users, err := store.NewUserStore(db)
	require.NoError(t, err)
	svc, err := NewMessageService(messages, users, rooms)
	require.NoError(t, err)
	return svc
}

var background = context.Background()
