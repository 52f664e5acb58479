package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/pkg/validator"
)

const (
	p256dhKeyLength = 65
	authSecretLen   = 16
	// maxEndpointLen matches the endpoint column width.
	maxEndpointLen = 700
)

// SubscriptionStore persists push subscriptions.
type SubscriptionStore interface {
	Upsert(ctx context.Context, userID, endpoint, auth, p256dh string) (*models.PushSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	Remove(ctx context.Context, userID, endpoint string) error
}

// SubscriptionService validates and records browser push subscriptions.
type SubscriptionService struct {
	store SubscriptionStore
}

// NewSubscriptionService constructs a subscription service.
func NewSubscriptionService(store SubscriptionStore) (*SubscriptionService, error) {
	if store == nil {
		return nil, errors.New("subscription service: store is required")
	}
	return &SubscriptionService{store: store}, nil
}

// Subscribe registers or refreshes the keys of (userID, endpoint).
func (s *SubscriptionService) Subscribe(ctx context.Context, userID, endpoint, auth, p256dh string) (*models.PushSubscription, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	endpoint = strings.TrimSpace(endpoint)
	if !validator.IsPushEndpoint(endpoint) {
		return nil, fmt.Errorf("%w: endpoint must be an absolute https URL", ErrValidation)
	}
	if len(endpoint) > maxEndpointLen {
		return nil, fmt.Errorf("%w: endpoint must be at most %d characters", ErrValidation, maxEndpointLen)
	}
	auth = strings.TrimSpace(auth)
	p256dh = strings.TrimSpace(p256dh)
	if raw, ok := decodeKey(auth); !ok || len(raw) != authSecretLen {
		return nil, fmt.Errorf("%w: keys.auth must be a base64url encoded 16 byte secret", ErrValidation)
	}
	if raw, ok := decodeKey(p256dh); !ok || len(raw) != p256dhKeyLength || raw[0] != 0x04 {
		return nil, fmt.Errorf("%w: keys.p256dh must be a base64url encoded uncompressed P-256 point", ErrValidation)
	}

	sub, err := s.store.Upsert(ctx, userID, endpoint, auth, p256dh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return sub, nil
}

// Unsubscribe removes (userID, endpoint). Unknown endpoints are not an error.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUnauthorized
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrValidation)
	}
	if err := s.store.Remove(ctx, userID, endpoint); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// List returns the caller's subscriptions.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	subs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return subs, nil
}

// decodeKey accepts the base64 flavours browsers emit for subscription keys.
func decodeKey(value string) ([]byte, bool) {
	if value == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if raw, err := enc.DecodeString(value); err == nil {
			return raw, true
		}
	}
	return nil, false
}
