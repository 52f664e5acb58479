package realtime

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/steamsedu/steams/pkg/logger"
	"github.com/steamsedu/steams/pkg/metrics"
)

var (
	// ErrRegistryClosed is returned by Join once Close has been called.
	ErrRegistryClosed = errors.New("realtime: registry closed")
	// ErrInvalidJoin is returned when Join is called without a connection or user id.
	ErrInvalidJoin = errors.New("realtime: connection and user id are required")
)

// Conn is a live client connection as seen by the registry.
type Conn interface {
	ID() string
	// Enqueue hands the event to the connection's outbound queue without
	// blocking and reports false when the queue is full or closed.
	Enqueue(Event) bool
	Close()
}

type command interface{ isCommand() }

type joinCmd struct {
	conn   Conn
	userID string
	reply  chan struct{}
}

type leaveCmd struct {
	connID string
	reply  chan struct{}
}

type broadcastCmd struct {
	userID string
	event  Event
	reply  chan int
}

type countCmd struct {
	userID string
	reply  chan int
}

func (joinCmd) isCommand()      {}
func (leaveCmd) isCommand()     {}
func (broadcastCmd) isCommand() {}
func (countCmd) isCommand()     {}

// Registry maps user rooms to their live connections. A single goroutine owns
// the maps; every operation is a command sent to it.
type Registry struct {
	cmds      chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	rooms   map[string]map[string]Conn
	members map[string]string
	log     *zap.Logger
}

// NewRegistry starts a registry loop. Call Close to stop it.
func NewRegistry() *Registry {
	r := &Registry{
		cmds:    make(chan command),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		rooms:   make(map[string]map[string]Conn),
		members: make(map[string]string),
		log:     logger.WithModule("realtime"),
	}
	go r.run()
	return r
}

// Join registers conn under userID's room. Joining again with the same
// connection id is a no-op; joining another room moves the connection.
func (r *Registry) Join(conn Conn, userID string) error {
	userID = strings.TrimSpace(userID)
	if conn == nil || conn.ID() == "" || userID == "" {
		return ErrInvalidJoin
	}
	reply := make(chan struct{}, 1)
	if !r.submit(joinCmd{conn: conn, userID: userID, reply: reply}) {
		return ErrRegistryClosed
	}
	select {
	case <-reply:
		return nil
	case <-r.done:
		return ErrRegistryClosed
	}
}

// Leave removes the connection from whatever room it joined. Unknown ids are ignored.
func (r *Registry) Leave(connID string) {
	if connID == "" {
		return
	}
	reply := make(chan struct{}, 1)
	if !r.submit(leaveCmd{connID: connID, reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-r.done:
	}
}

// Broadcast enqueues event on every connection in userID's room and returns
// how many accepted it. An empty room is not an error. Connections whose
// queue is full are dropped from the room and closed.
func (r *Registry) Broadcast(userID string, event Event) int {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0
	}
	reply := make(chan int, 1)
	if !r.submit(broadcastCmd{userID: userID, event: event, reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// Connections reports how many connections are joined to userID's room.
func (r *Registry) Connections(userID string) int {
	reply := make(chan int, 1)
	if !r.submit(countCmd{userID: strings.TrimSpace(userID), reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	}
}

// Close stops the loop and closes every joined connection. Later calls on the
// registry are no-ops.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	<-r.stopped
}

func (r *Registry) submit(cmd command) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.cmds <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			r.shutdown()
			return
		case cmd := <-r.cmds:
			r.handle(cmd)
		}
	}
}

func (r *Registry) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		r.join(c.conn, c.userID)
		c.reply <- struct{}{}
	case leaveCmd:
		r.remove(c.connID)
		c.reply <- struct{}{}
	case broadcastCmd:
		c.reply <- r.broadcast(c.userID, c.event)
	case countCmd:
		c.reply <- len(r.rooms[c.userID])
	}
}

func (r *Registry) join(conn Conn, userID string) {
	connID := conn.ID()
	if current, ok := r.members[connID]; ok {
		if current == userID {
			return
		}
		r.remove(connID)
	}

	room := r.rooms[userID]
	if room == nil {
		room = make(map[string]Conn)
		r.rooms[userID] = room
	}
	room[connID] = conn
	r.members[connID] = userID
	metrics.RealtimeConnections.Inc()
}

func (r *Registry) remove(connID string) Conn {
	userID, ok := r.members[connID]
	if !ok {
		return nil
	}
	delete(r.members, connID)

	room := r.rooms[userID]
	conn := room[connID]
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, userID)
	}
	metrics.RealtimeConnections.Dec()
	return conn
}

func (r *Registry) broadcast(userID string, event Event) int {
	room := r.rooms[userID]
	if len(room) == 0 {
		return 0
	}

	delivered := 0
	var slow []string
	for connID, conn := range room {
		if conn.Enqueue(event) {
			delivered++
			continue
		}
		slow = append(slow, connID)
	}

	for _, connID := range slow {
		r.log.Warn("dropping backpressured connection",
			zap.String("user_id", userID),
			zap.String("connection_id", connID),
			zap.String("event", event.Name),
		)
		if conn := r.remove(connID); conn != nil {
			// Close re-enters the registry through Leave, so it must not run on this goroutine.
			go conn.Close()
		}
	}

	metrics.BroadcastEvents.WithLabelValues(event.Name, "delivered").Add(float64(delivered))
	if len(slow) > 0 {
		metrics.BroadcastEvents.WithLabelValues(event.Name, "dropped").Add(float64(len(slow)))
	}
	return delivered
}

func (r *Registry) shutdown() {
	for connID := range r.members {
		if conn := r.remove(connID); conn != nil {
			go conn.Close()
		}
	}
}
