package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/internal/push"
	"github.com/steamsedu/steams/internal/services"
	appErrors "github.com/steamsedu/steams/pkg/errors"
	"github.com/steamsedu/steams/pkg/response"
)

var errPushDisabled = appErrors.New("PUSH_DISABLED", "Push notifications are not configured", http.StatusServiceUnavailable)

// NotificationHandler manages push subscriptions and explicit notification sends.
type NotificationHandler struct {
	subscriptions  *services.SubscriptionService
	notifier       *services.NotificationService
	vapidPublicKey string
}

// NewNotificationHandler constructs a NotificationHandler. notifier may be nil
// when push delivery is disabled; subscriptions are still recorded.
func NewNotificationHandler(subscriptions *services.SubscriptionService, notifier *services.NotificationService, vapidPublicKey string) (*NotificationHandler, error) {
	if subscriptions == nil {
		return nil, errors.New("notification handler: subscription service is required")
	}
	return &NotificationHandler{
		subscriptions:  subscriptions,
		notifier:       notifier,
		vapidPublicKey: strings.TrimSpace(vapidPublicKey),
	}, nil
}

// subscribeRequest mirrors PushSubscription.toJSON() in browsers.
type subscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,pushendpoint"`
	Keys     struct {
		Auth   string `json:"auth" validate:"required"`
		P256dh string `json:"p256dh" validate:"required"`
	} `json:"keys"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

type sendNotificationRequest struct {
	UserID       string                     `json:"userId" validate:"required"`
	Notification *notifications.Payload     `json:"notification"`
	Kind         string                     `json:"kind"`
	Data         notifications.TemplateData `json:"data"`
}

// POST /api/notifications/subscribe
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req subscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	sub, err := h.subscriptions.Subscribe(requestContext(c), user.ID, req.Endpoint, req.Keys.Auth, req.Keys.P256dh)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, sub)
}

// DELETE /api/notifications/subscribe
func (h *NotificationHandler) Unsubscribe(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	var req unsubscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.subscriptions.Unsubscribe(requestContext(c), user.ID, req.Endpoint); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// GET /api/notifications/subscriptions
func (h *NotificationHandler) ListSubscriptions(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}

	subs, err := h.subscriptions.List(requestContext(c), user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, subs)
}

// POST /api/notifications/send
//
// Per-device delivery failures do not fail the request; the body carries the
// delivery report.
func (h *NotificationHandler) Send(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.notifier == nil {
		response.Error(c, errPushDisabled)
		return
	}

	var req sendNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	report, err := h.notifier.Send(requestContext(c), user.ID, services.SendNotificationInput{
		UserID:  req.UserID,
		Payload: req.Notification,
		Kind:    req.Kind,
		Data:    req.Data,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, reportResponse(report))
}

// GET /api/notifications/vapid-key
func (h *NotificationHandler) VAPIDKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		response.Error(c, errPushDisabled)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"publicKey": h.vapidPublicKey})
}

type deliveryReport struct {
	UserID    string        `json:"userId"`
	Delivered int           `json:"delivered"`
	Removed   int           `json:"removed"`
	Failed    int           `json:"failed"`
	Results   []push.Result `json:"results"`
}

func reportResponse(report push.Report) deliveryReport {
	results := report.Results
	if results == nil {
		results = []push.Result{}
	}
	return deliveryReport{
		UserID:    report.UserID,
		Delivered: report.Delivered(),
		Removed:   report.Removed(),
		Failed:    report.Failed(),
		Results:   results,
	}
}
