// Package client holds the client-resident side of real-time delivery: the
// notification state machine fed by the live channel and foreground pushes,
// and a websocket listener that feeds it.
package client

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/pkg/logger"
)

const defaultIcon = "/icon.png"

// Notification is a client-resident notification. It starts unread; Read is
// one-way and removal is terminal.
type Notification struct {
	ID        string             `json:"id"`
	Type      notifications.Kind `json:"type"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Timestamp time.Time          `json:"timestamp"`
	Read      bool               `json:"read"`
	Data      map[string]any     `json:"data,omitempty"`
}

// SystemNotifier displays local system notifications on the host.
type SystemNotifier interface {
	Permitted() bool
	Show(title, body, icon string) error
}

// Participant is the display shape of a message sender or receiver.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// MessageEvent is the data of a newMessage live event.
type MessageEvent struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"senderId"`
	ReceiverID string       `json:"receiverId"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"createdAt"`
	Read       bool         `json:"read"`
	Sender     *Participant `json:"sender,omitempty"`
	Receiver   *Participant `json:"receiver,omitempty"`
}

// ProgressEvent is the data of a progressUpdate live event.
type ProgressEvent struct {
	UserID         string `json:"userId"`
	LessonID       string `json:"lessonId,omitempty"`
	LessonTitle    string `json:"lessonTitle,omitempty"`
	PathName       string `json:"pathName"`
	CompletedCount int    `json:"completedCount"`
	Timestamp      int64  `json:"timestamp"`
}

// Option customises a NotificationState.
type Option func(*NotificationState)

// WithSystemNotifier shows a system notification for every new message.
func WithSystemNotifier(n SystemNotifier) Option {
	return func(s *NotificationState) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *NotificationState) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIcon sets the icon passed to the system notifier.
func WithIcon(icon string) Option {
	return func(s *NotificationState) {
		if icon != "" {
			s.icon = icon
		}
	}
}

// NotificationState is the in-memory notification list of one signed-in user.
// It is safe for concurrent use.
type NotificationState struct {
	userID   string
	notifier SystemNotifier
	now      func() time.Time
	icon     string
	log      *zap.Logger

	mu      sync.Mutex
	items   []*Notification // oldest first
	index   map[string]*Notification
	cleared map[string]struct{}
	subs    map[int]chan []Notification
	next    int
}

// NewNotificationState returns an empty state for userID.
func NewNotificationState(userID string, opts ...Option) *NotificationState {
	s := &NotificationState{
		userID:  strings.TrimSpace(userID),
		now:     time.Now,
		icon:    defaultIcon,
		log:     logger.WithModule("client"),
		index:   make(map[string]*Notification),
		cleared: make(map[string]struct{}),
		subs:    make(map[int]chan []Notification),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID returns the local user.
func (s *NotificationState) UserID() string { return s.userID }

// IngestMessage records a live message. Only messages addressed to the local
// user create a notification; a message seen twice, or already cleared, is ignored.
func (s *NotificationState) IngestMessage(msg MessageEvent) (Notification, bool) {
	if msg.ID == "" || msg.ReceiverID != s.userID {
		return Notification{}, false
	}

	sender := "someone"
	if msg.Sender != nil && strings.TrimSpace(msg.Sender.Name) != "" {
		sender = msg.Sender.Name
	}
	n := &Notification{
		ID:    "msg-" + msg.ID,
		Type:  notifications.KindMessage,
		Title: "New message from " + sender,
		Body:  msg.Content,
		Data: map[string]any{
			"url":       "/messages?userId=" + msg.SenderID,
			"messageId": msg.ID,
			"senderId":  msg.SenderID,
		},
	}

	s.mu.Lock()
	if s.knownLocked(n.ID) {
		s.mu.Unlock()
		return Notification{}, false
	}
	s.insertLocked(n)
	out := *n
	s.mu.Unlock()

	s.showSystem(out)
	return out, true
}

// IngestProgress records a progress update for the local user.
func (s *NotificationState) IngestProgress(update ProgressEvent) (Notification, bool) {
	if update.UserID != "" && update.UserID != s.userID {
		return Notification{}, false
	}

	path := update.PathName
	if strings.TrimSpace(path) == "" {
		path = "your learning path"
	}
	ts := update.Timestamp
	if ts == 0 {
		ts = s.now().UnixMilli()
	}
	n := &Notification{
		ID:    "progress-" + strconv.FormatInt(ts, 10),
		Type:  notifications.KindProgress,
		Title: "Progress Update",
		Body:  fmt.Sprintf("You've completed %d lessons in %s!", update.CompletedCount, path),
		Data: map[string]any{
			"url":            "/progress",
			"pathName":       update.PathName,
			"completedCount": update.CompletedCount,
		},
	}
	if update.LessonID != "" {
		n.Data["lessonId"] = update.LessonID
	}

	s.mu.Lock()
	s.insertLocked(n)
	out := *n
	s.mu.Unlock()
	return out, true
}

// IngestPush records a push payload received while the app is foregrounded.
func (s *NotificationState) IngestPush(p notifications.Payload) (Notification, bool) {
	if err := p.Validate(); err != nil {
		s.log.Debug("ignoring malformed push payload", zap.Error(err))
		return Notification{}, false
	}

	kind, ok := notifications.ParseKind(p.Type())
	if !ok {
		kind = notifications.Kind(p.Type())
	}
	id := "push-" + p.Tag
	if p.Tag == "" {
		id = "push-" + strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	data := make(map[string]any, len(p.Data))
	for k, v := range p.Data {
		data[k] = v
	}
	n := &Notification{ID: id, Type: kind, Title: p.Title, Body: p.Body, Data: data}

	s.mu.Lock()
	s.insertLocked(n)
	out := *n
	s.mu.Unlock()
	return out, true
}

// MarkAsRead moves an unread notification to read. It reports whether a
// transition happened.
func (s *NotificationState) MarkAsRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.index[id]
	if !ok || n.Read {
		return false
	}
	n.Read = true
	s.publishLocked()
	return true
}

// MarkAllAsRead marks every notification read in one critical section and
// returns how many changed.
func (s *NotificationState) MarkAllAsRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for _, n := range s.items {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	if changed > 0 {
		s.publishLocked()
	}
	return changed
}

// Clear removes a notification in any state. Removal is final: the id is
// never reused and a redelivered event for it is dropped.
func (s *NotificationState) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	s.cleared[id] = struct{}{}
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.publishLocked()
	return true
}

// UnreadCount counts notifications currently unread.
func (s *NotificationState) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Notifications returns a snapshot, newest first.
func (s *NotificationState) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a feed of snapshots taken after every change. Only the
// latest snapshot is retained for slow readers. Call cancel to stop the feed.
func (s *NotificationState) Subscribe() (feed <-chan []Notification, cancel func()) {
	ch := make(chan []Notification, 1)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *NotificationState) insertLocked(n *Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now()
	}
	base, suffix := n.ID, 2
	for {
		if !s.knownLocked(n.ID) {
			break
		}
		n.ID = base + "-" + strconv.Itoa(suffix)
		suffix++
	}
	s.items = append(s.items, n)
	s.index[n.ID] = n
	s.publishLocked()
}

func (s *NotificationState) knownLocked(id string) bool {
	if _, ok := s.index[id]; ok {
		return true
	}
	_, ok := s.cleared[id]
	return ok
}

func (s *NotificationState) snapshotLocked() []Notification {
	out := make([]Notification, 0, len(s.items))
	for i := len(s.items) - 1; i >= 0; i-- {
		out = append(out, *s.items[i])
	}
	return out
}

func (s *NotificationState) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

func (s *NotificationState) showSystem(n Notification) {
	if s.notifier == nil || !s.notifier.Permitted() {
		return
	}
	if err := s.notifier.Show(n.Title, n.Body, s.icon); err != nil {
		s.log.Warn("system notification failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
}
