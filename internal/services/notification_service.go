package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/internal/push"
	"github.com/steamsedu/steams/pkg/logger"
)

// Dispatcher delivers a payload to every push subscription of a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, payload notifications.Payload) (push.Report, error)
}

// SendNotificationInput selects either a raw payload or a template.
type SendNotificationInput struct {
	UserID  string
	Payload *notifications.Payload
	Kind    string
	Data    notifications.TemplateData
}

// NotificationService renders and dispatches push notifications.
type NotificationService struct {
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(dispatcher Dispatcher) (*NotificationService, error) {
	if dispatcher == nil {
		return nil, errors.New("notification service: dispatcher is required")
	}
	return &NotificationService{dispatcher: dispatcher, log: logger.WithModule("notifications")}, nil
}

// Send dispatches a notification on behalf of callerID. Delivery trouble on
// individual devices is reported, not returned.
func (s *NotificationService) Send(ctx context.Context, callerID string, input SendNotificationInput) (push.Report, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(callerID) == "" {
		return push.Report{}, ErrUnauthorized
	}

	payload, err := s.resolvePayload(input)
	if err != nil {
		return push.Report{}, err
	}

	report, err := s.dispatcher.Dispatch(ctx, input.UserID, payload)
	if err != nil {
		if errors.Is(err, push.ErrValidation) || errors.Is(err, push.ErrInvalidPayload) {
			return push.Report{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return push.Report{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if failures := report.Err(); failures != nil {
		s.log.Info("notification partially delivered",
			zap.String("user_id", report.UserID),
			zap.Int("delivered", report.Delivered()),
			zap.Int("removed", report.Removed()),
			zap.Error(failures),
		)
	}
	return report, nil
}

func (s *NotificationService) resolvePayload(input SendNotificationInput) (notifications.Payload, error) {
	if input.Payload != nil {
		return *input.Payload, nil
	}
	kindName := strings.TrimSpace(input.Kind)
	if kindName == "" {
		return notifications.Payload{}, fmt.Errorf("%w: notification or kind is required", ErrValidation)
	}
	kind, ok := notifications.ParseKind(kindName)
	if !ok {
		return notifications.Payload{}, fmt.Errorf("%w: unknown notification kind %q", ErrValidation, kindName)
	}
	return notifications.Generate(kind, input.Data), nil
}
