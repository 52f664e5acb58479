package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/steamsedu/steams/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	// DefaultSendBuffer is the outbound queue depth of a connection.
	DefaultSendBuffer = 64
)

// Server upgrades authenticated HTTP requests into registry connections.
type Server struct {
	registry   *Registry
	upgrader   websocket.Upgrader
	sendBuffer int
	origins    map[string]struct{}
	log        *zap.Logger
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithSendBuffer sets the per-connection outbound queue depth.
func WithSendBuffer(size int) ServerOption {
	return func(s *Server) {
		if size > 0 {
			s.sendBuffer = size
		}
	}
}

// WithAllowedOrigins accepts cross-origin upgrades from the listed hosts in
// addition to same-origin and loopback requests.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		for _, origin := range origins {
			if host := hostWithoutPort(origin); host != "" {
				s.origins[strings.ToLower(host)] = struct{}{}
			}
		}
	}
}

// NewServer constructs a websocket server feeding the supplied registry.
func NewServer(registry *Registry, opts ...ServerOption) *Server {
	s := &Server{
		registry:   registry,
		sendBuffer: DefaultSendBuffer,
		origins:    make(map[string]struct{}),
		log:        logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Serve upgrades the request and joins the connection to userID's room. It
// blocks until the client disconnects.
func (s *Server) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	conn := newConnection(s.registry, socket, userID, s.sendBuffer)
	if err := s.registry.Join(conn, userID); err != nil {
		s.log.Warn("join failed", zap.String("user_id", userID), zap.Error(err))
		conn.Close()
		return
	}

	go conn.writeLoop()
	conn.readLoop()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originHost := strings.ToLower(hostWithoutPort(origin))
	if originHost == strings.ToLower(hostWithoutPort(r.Host)) || isLoopback(originHost) {
		return true
	}
	_, ok := s.origins[originHost]
	return ok
}

// Connection is a websocket client joined to the registry.
type Connection struct {
	id       string
	userID   string
	registry *Registry
	socket   *websocket.Conn
	send     chan Event
	done     chan struct{}
	once     sync.Once
	log      *zap.Logger
}

func newConnection(registry *Registry, socket *websocket.Conn, userID string, buffer int) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:       id,
		userID:   userID,
		registry: registry,
		socket:   socket,
		send:     make(chan Event, buffer),
		done:     make(chan struct{}),
		log:      logger.WithModule("realtime").With(zap.String("connection_id", id), zap.String("user_id", userID)),
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// Enqueue implements Conn.
func (c *Connection) Enqueue(event Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// Close leaves the room and closes the socket. Safe to call more than once.
func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.done)
		c.registry.Leave(c.id)
		_ = c.socket.Close()
	})
}

func (c *Connection) readLoop() {
	defer c.Close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("unexpected close", zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		var event ClientEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			c.log.Debug("invalid client frame", zap.Error(err))
			continue
		}
		c.handle(event)
	}
}

func (c *Connection) handle(event ClientEvent) {
	switch strings.TrimSpace(event.Name) {
	case ClientJoin:
		room := event.RoomID()
		if room == "" {
			room = c.userID
		}
		// A connection may only listen to its own user's room.
		if room != c.userID {
			c.Enqueue(Event{Name: EventError, Data: "forbidden room"})
			return
		}
		if err := c.registry.Join(c, room); err != nil {
			c.log.Warn("join failed", zap.Error(err))
		}
	case ClientLeave:
		c.registry.Leave(c.id)
	case ClientPing:
		c.Enqueue(Event{Name: EventPong})
	default:
		c.log.Debug("unsupported client event", zap.String("event", event.Name))
	}
}

func (c *Connection) writeLoop() {
	defer c.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case event := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if parsed, err := url.Parse(host); err == nil {
			return hostWithoutPort(parsed.Host)
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
