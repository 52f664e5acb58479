package push

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/pkg/logger"
	"github.com/steamsedu/steams/pkg/metrics"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultMaxConcurrency = 8
	removeTimeout         = 5 * time.Second
)

// SubscriptionStore is the subset of the subscription store the dispatcher needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	Remove(ctx context.Context, userID, endpoint string) error
}

// Status is the outcome of one delivery attempt.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusRemoved   Status = "removed"
	StatusFailed    Status = "failed"
)

// Result describes a single endpoint delivery.
type Result struct {
	Endpoint   string        `json:"endpoint"`
	Status     Status        `json:"status"`
	Class      FailureClass  `json:"failureClass,omitempty"`
	StatusCode int           `json:"statusCode,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
	Err        error         `json:"-"`

	index int
}

// Report aggregates the results of one Dispatch call, in subscription order.
type Report struct {
	UserID  string   `json:"userId"`
	Results []Result `json:"results"`
}

// Delivered counts successful attempts.
func (r Report) Delivered() int { return r.count(StatusDelivered) }

// Removed counts subscriptions pruned because their endpoint is gone.
func (r Report) Removed() int { return r.count(StatusRemoved) }

// Failed counts attempts that failed without removing the subscription.
func (r Report) Failed() int { return r.count(StatusFailed) }

// Err combines every per-endpoint failure, or returns nil.
func (r Report) Err() error {
	var err error
	for _, result := range r.Results {
		if result.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", result.Endpoint, result.Err))
		}
	}
	return err
}

func (r Report) count(status Status) int {
	n := 0
	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}
	return n
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each delivery attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMaxConcurrency bounds how many endpoints are contacted at once.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// Dispatcher fans a payload out to every subscription of a user.
type Dispatcher struct {
	store          SubscriptionStore
	sender         Sender
	timeout        time.Duration
	maxConcurrency int
	log            *zap.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(store SubscriptionStore, sender Sender, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("push dispatcher: subscription store is required")
	}
	if sender == nil {
		return nil, errors.New("push dispatcher: sender is required")
	}
	d := &Dispatcher{
		store:          store,
		sender:         sender,
		timeout:        defaultTimeout,
		maxConcurrency: defaultMaxConcurrency,
		log:            logger.WithModule("push"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch delivers payload to every subscription of userID. Per-endpoint
// failures are reported in the Report, never returned; the error is reserved
// for a missing user, an undeliverable payload or a failed lookup. Endpoints
// reported gone are removed before Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, payload notifications.Payload) (Report, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Report{}, ErrValidation
	}
	body, err := payload.Encode()
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	subs, err := d.store.ListByUser(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("push dispatcher: list subscriptions: %w", err)
	}

	report := Report{UserID: userID, Results: []Result{}}
	if len(subs) == 0 {
		return report, nil
	}

	tasks := pool.NewWithResults[Result]().WithMaxGoroutines(d.maxConcurrency)
	for i, sub := range subs {
		target := Subscription{
			UserID:   sub.UserID,
			Endpoint: sub.Endpoint,
			Auth:     sub.Auth,
			P256dh:   sub.P256dh,
		}
		index := i
		tasks.Go(func() Result {
			result := d.deliver(ctx, target, body)
			result.index = index
			return result
		})
	}

	results := tasks.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })
	report.Results = results
	return report, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub Subscription, body []byte) (result Result) {
	result.Endpoint = sub.Endpoint
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusFailed
			result.Class = FailureTransient
			result.Err = fmt.Errorf("push sender panic: %v", r)
			result.Error = result.Err.Error()
		}
		result.Duration = time.Since(started)
		metrics.PushLatency.Observe(result.Duration.Seconds())
		metrics.PushDeliveries.WithLabelValues(metricLabel(result)).Inc()
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.sender.Send(attemptCtx, sub, body)
	if err == nil {
		result.Status = StatusDelivered
		return result
	}

	result.Err = err
	result.Error = err.Error()
	result.Class = Classify(err)
	var de *DeliveryError
	if errors.As(err, &de) {
		result.StatusCode = de.StatusCode
	}

	if !errors.Is(err, ErrGone) {
		result.Status = StatusFailed
		d.log.Warn("push delivery failed",
			zap.String("user_id", sub.UserID),
			zap.String("endpoint", sub.Endpoint),
			zap.String("class", string(result.Class)),
			zap.Error(err),
		)
		return result
	}

	// The endpoint is dead; prune it even if the caller's context is done.
	removeCtx, cancelRemove := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancelRemove()
	if rmErr := d.store.Remove(removeCtx, sub.UserID, sub.Endpoint); rmErr != nil {
		result.Status = StatusFailed
		result.Err = multierr.Append(err, fmt.Errorf("remove subscription: %w", rmErr))
		result.Error = result.Err.Error()
		d.log.Error("failed to remove gone subscription",
			zap.String("user_id", sub.UserID),
			zap.String("endpoint", sub.Endpoint),
			zap.Error(rmErr),
		)
		return result
	}

	result.Status = StatusRemoved
	metrics.PushSubscriptionsPruned.Inc()
	d.log.Info("removed gone push subscription",
		zap.String("user_id", sub.UserID),
		zap.String("endpoint", sub.Endpoint),
	)
	return result
}

func metricLabel(result Result) string {
	switch result.Status {
	case StatusDelivered:
		return "delivered"
	case StatusRemoved:
		return "gone"
	}
	if result.Class == "" {
		return string(FailureTransient)
	}
	return string(result.Class)
}
