// Package push delivers notification payloads to Web Push endpoints.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrGone marks an endpoint the push service will never accept again
	// (HTTP 404/410). Subscriptions failing with it are removed.
	ErrGone = errors.New("push: endpoint gone")
	// ErrInvalidPayload is returned by Dispatch before any lookup when the
	// payload cannot be delivered to anyone.
	ErrInvalidPayload = errors.New("push: invalid payload")
	// ErrValidation is returned by Dispatch when the target user is missing.
	ErrValidation = errors.New("push: user id is required")
)

// FailureClass groups delivery failures by how callers should react.
type FailureClass string

const (
	// FailurePermanent will not succeed on retry. Only ErrGone removes the subscription.
	FailurePermanent FailureClass = "permanent"
	// FailureTransient covers timeouts, throttling, 5xx and network errors.
	FailureTransient FailureClass = "transient"
	// FailureAuth means the push service rejected our VAPID credentials.
	FailureAuth FailureClass = "auth"
)

// Subscription is the delivery target handed to a Sender.
type Subscription struct {
	UserID   string
	Endpoint string
	Auth     string
	P256dh   string
}

// Sender performs a single delivery attempt.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// DeliveryError is a classified delivery failure.
type DeliveryError struct {
	StatusCode int
	Class      FailureClass
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("push delivery failed (%s, status %d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("push delivery failed (%s): %v", e.Class, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StatusError maps a push service response status to a DeliveryError. It
// returns nil for 2xx responses.
func StatusError(status int, detail string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := errors.New(http.StatusText(status))
	if detail != "" {
		cause = fmt.Errorf("%s: %s", http.StatusText(status), detail)
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return &DeliveryError{StatusCode: status, Class: FailurePermanent, Err: fmt.Errorf("%w: %v", ErrGone, cause)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &DeliveryError{StatusCode: status, Class: FailureAuth, Err: cause}
	case status == http.StatusTooManyRequests || status >= 500:
		return &DeliveryError{StatusCode: status, Class: FailureTransient, Err: cause}
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		return &DeliveryError{StatusCode: status, Class: FailurePermanent, Err: cause}
	default:
		return &DeliveryError{StatusCode: status, Class: FailureTransient, Err: cause}
	}
}

// Classify returns the failure class of err. Unclassified errors are treated
// as transient.
func Classify(err error) FailureClass {
	if errors.Is(err, ErrGone) {
		return FailurePermanent
	}
	var de *DeliveryError
	if errors.As(err, &de) && de.Class != "" {
		return de.Class
	}
	return FailureTransient
}
