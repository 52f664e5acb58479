package handlers_test

import (
	"sync"

	"github.com/steamsedu/steams/internal/realtime"
)

// recordingConn is an in-memory room connection that records every event.
type recordingConn struct {
	id     string
	mu     sync.Mutex
	events []realtime.Event
}

func newRecordingConn(id string) *recordingConn { return &recordingConn{id: id} }

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Enqueue(event realtime.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return true
}

func (c *recordingConn) Close() {}

func (c *recordingConn) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Name)
	}
	return out
}

func (c *recordingConn) last() realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return realtime.Event{}
	}
	return c.events[len(c.events)-1]
}
