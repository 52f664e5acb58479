// Package maintenance runs scheduled push notification jobs.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/notifications"
	"github.com/steamsedu/steams/internal/push"
	"github.com/steamsedu/steams/pkg/logger"
)

const (
	defaultDigestSpec    = "0 9 * * MON"
	defaultReminderSpec  = "0 17 * * *"
	defaultInactiveAfter = 72 * time.Hour
)

// SubscriberLister enumerates users holding at least one push subscription.
type SubscriberLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// UserLookup resolves display names.
type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// ActivityReader reports messaging activity used to pick digest and reminder content.
type ActivityReader interface {
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	LastSentAt(ctx context.Context, senderID string) (time.Time, bool, error)
}

// Dispatcher delivers a payload to every device of a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, payload notifications.Payload) (push.Report, error)
}

// Scheduler sends the weekly digest and inactivity reminders.
type Scheduler struct {
	subscribers SubscriberLister
	users       UserLookup
	activity    ActivityReader
	dispatcher  Dispatcher
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger

	digestSchedule   string
	reminderSchedule string
	inactiveAfter    time.Duration
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for inactivity comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDigestSchedule overrides the cron expression for the weekly digest.
func WithDigestSchedule(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.digestSchedule = expr
		}
	}
}

// WithReminderSchedule overrides the cron expression for inactivity reminders.
func WithReminderSchedule(expr string) Option {
	return func(s *Scheduler) {
		if expr != "" {
			s.reminderSchedule = expr
		}
	}
}

// WithInactivityThreshold sets how long a user must be idle before a reminder is sent.
func WithInactivityThreshold(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.inactiveAfter = d
		}
	}
}

// NewScheduler constructs a Scheduler with sensible defaults.
func NewScheduler(subscribers SubscriberLister, users UserLookup, activity ActivityReader, dispatcher Dispatcher, opts ...Option) (*Scheduler, error) {
	if subscribers == nil || users == nil || activity == nil {
		return nil, errors.New("maintenance: subscriber, user and activity sources are required")
	}
	if dispatcher == nil {
		return nil, errors.New("maintenance: dispatcher is required")
	}

	s := &Scheduler{
		subscribers:      subscribers,
		users:            users,
		activity:         activity,
		dispatcher:       dispatcher,
		now:              time.Now,
		log:              logger.WithModule("maintenance"),
		digestSchedule:   defaultDigestSpec,
		reminderSchedule: defaultReminderSpec,
		inactiveAfter:    defaultInactiveAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s, nil
}

// Start registers the jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.digestSchedule, func() {
		if _, err := s.SendDigests(context.Background()); err != nil {
			s.log.Warn("weekly digest failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: digest schedule: %w", err)
	}

	if _, err := s.cron.AddFunc(s.reminderSchedule, func() {
		if _, err := s.SendReminders(context.Background()); err != nil {
			s.log.Warn("inactivity reminders failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("maintenance: reminder schedule: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce executes both jobs sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	if _, err := s.SendDigests(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := s.SendReminders(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// SendDigests pushes the weekly summary to every subscribed user and returns
// how many users were dispatched to. A failure for one user does not stop the run.
func (s *Scheduler) SendDigests(ctx context.Context) (int, error) {
	return s.forEachSubscriber(ctx, func(ctx context.Context, userID string) (bool, error) {
		data := notifications.TemplateData{}
		if user, err := s.users.Get(ctx, userID); err == nil {
			data.UserName = user.Name
		}
		unread, err := s.activity.CountUnread(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("count unread for %s: %w", userID, err)
		}
		data.MessageCount = int(unread)
		return true, s.dispatch(ctx, userID, notifications.Generate(notifications.KindDigest, data))
	})
}

// SendReminders nudges subscribed users who have been idle for longer than
// the inactivity threshold.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	return s.forEachSubscriber(ctx, func(ctx context.Context, userID string) (bool, error) {
		last, ok, err := s.activity.LastSentAt(ctx, userID)
		if err != nil {
			return false, fmt.Errorf("last activity for %s: %w", userID, err)
		}
		if !ok {
			user, err := s.users.Get(ctx, userID)
			if err != nil {
				return false, fmt.Errorf("load user %s: %w", userID, err)
			}
			last = user.CreatedAt
		}

		idle := now.Sub(last)
		if idle < s.inactiveAfter {
			return false, nil
		}
		days := int(math.Floor(idle.Hours() / 24))
		payload := notifications.Generate(notifications.KindReminder, notifications.TemplateData{DaysInactive: days})
		return true, s.dispatch(ctx, userID, payload)
	})
}

func (s *Scheduler) forEachSubscriber(ctx context.Context, job func(context.Context, string) (bool, error)) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	userIDs, err := s.subscribers.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("maintenance: list subscribers: %w", err)
	}

	var (
		errs error
		sent int
	)
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return sent, multierr.Append(errs, err)
		}
		dispatched, err := job(ctx, userID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if dispatched {
			sent++
		}
	}
	return sent, errs
}

func (s *Scheduler) dispatch(ctx context.Context, userID string, payload notifications.Payload) error {
	report, err := s.dispatcher.Dispatch(ctx, userID, payload)
	if err != nil {
		return fmt.Errorf("dispatch %s to %s: %w", payload.Type(), userID, err)
	}
	s.log.Debug("scheduled notification dispatched",
		zap.String("user_id", userID),
		zap.String("type", payload.Type()),
		zap.Int("delivered", report.Delivered()),
		zap.Int("removed", report.Removed()),
	)
	return nil
}
