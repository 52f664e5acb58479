package serviceworker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/steamsedu/steams/internal/notifications"
)

type shown struct {
	title string
	opts  DisplayOptions
}

type fakeHost struct {
	shown   []shown
	closed  []string
	opened  []string
	showErr error
	openErr error
}

func (f *fakeHost) ShowNotification(_ context.Context, title string, opts DisplayOptions) error {
	if f.showErr != nil {
		return f.showErr
	}
	f.shown = append(f.shown, shown{title: title, opts: opts})
	return nil
}

func (f *fakeHost) Close(_ context.Context, tag string) error {
	f.closed = append(f.closed, tag)
	return nil
}

func (f *fakeHost) OpenWindow(_ context.Context, url string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = append(f.opened, url)
	return nil
}

func newHandler(t *testing.T) (*Handler, *fakeHost) {
	t.Helper()
	host := &fakeHost{}
	h, err := New(host)
	require.NoError(t, err)
	return h, host
}

func TestHandlePushShowsTemplatePayload(t *testing.T) {
	h, host := newHandler(t)
	payload := notifications.Generate(notifications.KindMessage, notifications.TemplateData{SenderName: "Ada", SenderID: "ada"})
	raw, err := payload.Encode()
	require.NoError(t, err)

	tag, err := h.HandlePush(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "message", tag)

	require.Len(t, host.shown, 1)
	got := host.shown[0]
	require.Equal(t, payload.Title, got.title)
	require.Equal(t, payload.Body, got.opts.Body)
	require.Equal(t, payload.Icon, got.opts.Icon)
	require.Equal(t, "/messages", got.opts.Data["url"])
	require.Equal(t, "ada", got.opts.Data["senderId"])
	require.Len(t, got.opts.Actions, 2)

	require.NoError(t, h.HandleClick(context.Background(), ClickEvent{Tag: tag, Data: got.opts.Data}))
	require.Equal(t, []string{"message"}, host.closed)
	require.Equal(t, []string{"/messages"}, host.opened)
}

func TestHandlePushAcceptsTopLevelURL(t *testing.T) {
	h, host := newHandler(t)

	tag, err := h.HandlePush(context.Background(), []byte(`{"title":"Hi","body":"there","url":"/lessons/7"}`))
	require.NoError(t, err)
	require.NotEmpty(t, tag)

	opts := host.shown[0].opts
	require.Equal(t, defaultIcon, opts.Icon)
	require.Equal(t, defaultBadge, opts.Badge)
	require.Equal(t, []int{100, 50, 100}, opts.Vibrate)
	require.Equal(t, "/lessons/7", opts.Data["url"])

	require.NoError(t, h.HandleClick(context.Background(), ClickEvent{Tag: tag, Data: opts.Data}))
	require.Equal(t, []string{"/lessons/7"}, host.opened)
}

func TestHandlePushRejectsInvalidData(t *testing.T) {
	h, host := newHandler(t)

	for _, raw := range []string{`not json`, `{"title":"only title"}`, `{"body":"only body"}`} {
		_, err := h.HandlePush(context.Background(), []byte(raw))
		require.ErrorIs(t, err, ErrInvalidPush, raw)
	}
	require.Empty(t, host.shown)
}

func TestHandlePushHostFailure(t *testing.T) {
	h, host := newHandler(t)
	host.showErr = errors.New("permission revoked")

	raw, _ := json.Marshal(map[string]string{"title": "a", "body": "b"})
	_, err := h.HandlePush(context.Background(), raw)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidPush)
}

func TestHandleClickAfterRestartUsesStoredData(t *testing.T) {
	first, shownBy := newHandler(t)
	payload := notifications.Generate(notifications.KindDeadline, notifications.TemplateData{
		LessonID:   "l-7",
		LessonName: "Fractions",
		Deadline:   "in 2 hours",
	})
	raw, err := payload.Encode()
	require.NoError(t, err)

	tag, err := first.HandlePush(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, shownBy.shown, 1)
	displayed := shownBy.shown[0].opts

	restarted, host := newHandler(t)
	require.NoError(t, restarted.HandleClick(context.Background(), ClickEvent{Tag: tag, Data: displayed.Data}))
	require.Equal(t, []string{tag}, host.closed)
	require.Equal(t, []string{"/lesson/l-7"}, host.opened)
}

func TestHandleClickWithoutURLOpensRoot(t *testing.T) {
	h, host := newHandler(t)

	require.NoError(t, h.HandleClick(context.Background(), ClickEvent{Tag: "stale"}))
	require.NoError(t, h.HandleClick(context.Background(), ClickEvent{Tag: "blank", Data: map[string]any{"url": "  "}}))
	require.Equal(t, []string{"stale", "blank"}, host.closed)
	require.Equal(t, []string{"/", "/"}, host.opened)

	host.openErr = errors.New("no window")
	require.Error(t, h.HandleClick(context.Background(), ClickEvent{Tag: "stale"}))
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
