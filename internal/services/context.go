package services

import (
	"context"
	"sort"
	"strings"
	"sync"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// conversationLocks serialises work per unordered user pair.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[string]*refLock)}
}

// lock acquires the lock for the conversation between a and b and returns its release func.
func (c *conversationLocks) lock(a, b string) func() {
	key := conversationKey(a, b)

	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &refLock{}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

func conversationKey(a, b string) string {
	pair := []string{strings.TrimSpace(a), strings.TrimSpace(b)}
	sort.Strings(pair)
	return pair[0] + "\x00" + pair[1]
}
