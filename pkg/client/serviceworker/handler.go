// Package serviceworker handles push events delivered while no foreground
// session exists: it shows a system notification and resolves its deep link
// when the notification is clicked.
package serviceworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/pkg/logger"
)

const (
	defaultIcon  = "/icon.png"
	defaultBadge = "/badge.png"
	fallbackURL  = "/"
)

// ErrInvalidPush is returned for push data that is not a notification payload.
var ErrInvalidPush = errors.New("serviceworker: invalid push payload")

var defaultVibrate = []int{100, 50, 100}

// DisplayOptions mirrors the options of a displayed system notification.
type DisplayOptions struct {
	Body    string
	Icon    string
	Badge   string
	Tag     string
	Vibrate []int
	Data    map[string]any
	Actions []notifications.Action
}

// Host is the background runtime the handler drives.
type Host interface {
	ShowNotification(ctx context.Context, title string, opts DisplayOptions) error
	Close(ctx context.Context, tag string) error
	OpenWindow(ctx context.Context, url string) error
}

// ClickEvent describes a clicked notification as the host hands it back: the
// tag and the data stored when it was displayed.
type ClickEvent struct {
	Tag  string
	Data map[string]any
}

// URL returns the deep link stored in the notification data, or the
// application root when none was stored.
func (e ClickEvent) URL() string {
	if link, ok := e.Data["url"].(string); ok && strings.TrimSpace(link) != "" {
		return link
	}
	return fallbackURL
}

// Handler renders push events and handles notification clicks. It keeps no
// state between events; the host may recreate it at any time.
type Handler struct {
	host Host
	log  *zap.Logger
}

// New returns a handler bound to host.
func New(host Host) (*Handler, error) {
	if host == nil {
		return nil, errors.New("serviceworker: host is required")
	}
	return &Handler{
		host: host,
		log:  logger.WithModule("serviceworker"),
	}, nil
}

// pushData accepts the payload shape plus a top-level url used by older senders.
type pushData struct {
	notifications.Payload
	URL string `json:"url,omitempty"`
}

// HandlePush parses raw push data and displays it. It returns the tag of the
// displayed notification.
func (h *Handler) HandlePush(ctx context.Context, raw []byte) (string, error) {
	var data pushData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPush, err)
	}
	payload := data.Payload
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPush, err)
	}

	link := strings.TrimSpace(data.URL)
	if link == "" {
		link = payload.URL()
	}
	if link == "" {
		link = fallbackURL
	}

	tag := payload.Tag
	if tag == "" {
		tag = uuid.NewString()
	}

	stored := make(map[string]any, len(payload.Data)+1)
	for k, v := range payload.Data {
		stored[k] = v
	}
	stored["url"] = link

	opts := DisplayOptions{
		Body:    payload.Body,
		Icon:    or(payload.Icon, defaultIcon),
		Badge:   or(payload.Badge, defaultBadge),
		Tag:     tag,
		Vibrate: defaultVibrate,
		Data:    stored,
		Actions: payload.Actions,
	}
	if err := h.host.ShowNotification(ctx, payload.Title, opts); err != nil {
		return "", fmt.Errorf("serviceworker: show notification: %w", err)
	}

	h.log.Debug("push displayed", zap.String("tag", tag), zap.String("url", link))
	return tag, nil
}

// HandleClick dismisses the notification and opens the deep link stored in
// its data.
func (h *Handler) HandleClick(ctx context.Context, event ClickEvent) error {
	link := event.URL()
	if err := h.host.Close(ctx, event.Tag); err != nil {
		h.log.Warn("close notification failed", zap.String("tag", event.Tag), zap.Error(err))
	}
	if err := h.host.OpenWindow(ctx, link); err != nil {
		return fmt.Errorf("serviceworker: open %s: %w", link, err)
	}
	return nil
}

func or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
