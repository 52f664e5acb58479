package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/pkg/logger"
)

const (
	listenerWriteWait = 10 * time.Second
	listenerPingEvery = 30 * time.Second
)

// Listener feeds a NotificationState from the live websocket channel.
type Listener struct {
	endpoint string
	token    string
	state    *NotificationState
	dialer   *websocket.Dialer
	log      *zap.Logger
}

// ListenerOption customises a Listener.
type ListenerOption func(*Listener)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) ListenerOption {
	return func(l *Listener) {
		if d != nil {
			l.dialer = d
		}
	}
}

// NewListener prepares a listener for the websocket endpoint at rawURL
// (http, https, ws or wss). The bearer token authenticates the upgrade.
func NewListener(rawURL, token string, state *NotificationState, opts ...ListenerOption) (*Listener, error) {
	if state == nil {
		return nil, errors.New("client: notification state is required")
	}
	if state.UserID() == "" {
		return nil, errors.New("client: notification state has no user")
	}
	endpoint, err := websocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		endpoint: endpoint,
		token:    strings.TrimSpace(token),
		state:    state,
		dialer:   websocket.DefaultDialer,
		log:      logger.WithModule("client").With(zap.String("user_id", state.UserID())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run dials, joins the local user's room and dispatches events until ctx is
// cancelled or the server closes the connection.
func (l *Listener) Run(ctx context.Context) error {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}

	socket, resp, err := l.dialer.DialContext(ctx, l.endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("client: dial %s: %w (status %d)", l.endpoint, err, resp.StatusCode)
		}
		return fmt.Errorf("client: dial %s: %w", l.endpoint, err)
	}
	defer socket.Close()

	if err := l.write(socket, realtime.ClientJoin, l.state.UserID()); err != nil {
		return fmt.Errorf("client: join: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go l.keepAlive(ctx, socket, done)

	for {
		var frame realtime.ClientEvent
		if err := socket.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client: read: %w", err)
		}
		l.dispatch(frame)
	}
}

func (l *Listener) dispatch(frame realtime.ClientEvent) {
	switch frame.Name {
	case realtime.EventNewMessage:
		var msg MessageEvent
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			l.log.Debug("invalid message event", zap.Error(err))
			return
		}
		l.state.IngestMessage(msg)
	case realtime.EventProgressUpdate:
		var update ProgressEvent
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			l.log.Debug("invalid progress event", zap.Error(err))
			return
		}
		l.state.IngestProgress(update)
	case realtime.EventError:
		l.log.Warn("server reported error", zap.ByteString("data", frame.Data))
	}
}

// keepAlive sends ping frames and closes the socket when ctx ends so the
// blocked reader returns.
func (l *Listener) keepAlive(ctx context.Context, socket *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(listenerPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = socket.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(listenerWriteWait))
			_ = socket.Close()
			return
		case <-ticker.C:
			if err := l.write(socket, realtime.ClientPing, nil); err != nil {
				l.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// write serialises frames; gorilla allows one concurrent writer and the ping
// loop is the only writer after join.
func (l *Listener) write(socket *websocket.Conn, name string, data any) error {
	_ = socket.SetWriteDeadline(time.Now().Add(listenerWriteWait))
	return socket.WriteJSON(realtime.Event{Name: name, Data: data})
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("client: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("client: url has no host")
	}
	return u.String(), nil
}
