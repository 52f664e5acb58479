package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steamsedu/steams/internal/models"
)

// SubscriptionStore keeps the user -> push endpoint mapping.
type SubscriptionStore struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewSubscriptionStore constructs a subscription store backed by db.
func NewSubscriptionStore(db *gorm.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, errors.New("subscription store: db is required")
	}
	return &SubscriptionStore{db: db, timeNow: time.Now}, nil
}

// Upsert inserts the subscription or overwrites the keys of the existing
// (userID, endpoint) row.
func (s *SubscriptionStore) Upsert(ctx context.Context, userID, endpoint, auth, p256dh string) (*models.PushSubscription, error) {
	userID = strings.TrimSpace(userID)
	endpoint = strings.TrimSpace(endpoint)
	if userID == "" || endpoint == "" {
		return nil, errors.New("subscription store: user id and endpoint are required")
	}
	ctx = ensureContext(ctx)

	now := s.timeNow()
	record := models.PushSubscription{
		UserID:    userID,
		Endpoint:  endpoint,
		Auth:      auth,
		P256dh:    p256dh,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"auth", "p256dh", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return nil, err
	}

	var stored models.PushSubscription
	if err := s.db.WithContext(ctx).
		First(&stored, "user_id = ? AND endpoint = ?", userID, endpoint).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListByUser returns every subscription registered by userID.
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	ctx = ensureContext(ctx)

	var rows []models.PushSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		Order("endpoint ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Remove deletes the (userID, endpoint) subscription. Deleting a row that is
// already gone succeeds.
func (s *SubscriptionStore) Remove(ctx context.Context, userID, endpoint string) error {
	ctx = ensureContext(ctx)
	return s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", strings.TrimSpace(userID), strings.TrimSpace(endpoint)).
		Delete(&models.PushSubscription{}).Error
}

// ListUserIDs returns the distinct users holding at least one subscription.
func (s *SubscriptionStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
