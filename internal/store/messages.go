package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/models"
)

// MessageFilter narrows QueryMessages to one viewer and, optionally, one counterpart.
type MessageFilter struct {
	ViewerID      string
	CounterpartID string
}

// MessageStore is the durable store for direct messages.
type MessageStore struct {
	db *gorm.DB
}

// NewMessageStore constructs a message store backed by db.
func NewMessageStore(db *gorm.DB) (*MessageStore, error) {
	if db == nil {
		return nil, errors.New("message store: db is required")
	}
	return &MessageStore{db: db}, nil
}

// InsertMessage appends a message and returns it with sender and receiver loaded.
func (s *MessageStore) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, errors.New("message store: message is required")
	}
	ctx = ensureContext(ctx)

	msg.Sender = nil
	msg.Receiver = nil
	if err := s.db.WithContext(ctx).Omit("Sender", "Receiver").Create(msg).Error; err != nil {
		return nil, err
	}

	return s.load(ctx, msg.ID)
}

// QueryMessages lists every message the viewer sent or received, oldest first.
// Rows sharing a timestamp fall back to id order so pages stay stable.
func (s *MessageStore) QueryMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error) {
	viewerID := strings.TrimSpace(filter.ViewerID)
	if viewerID == "" {
		return nil, errors.New("message store: viewer id is required")
	}
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Preload("Sender").
		Preload("Receiver")

	if counterpartID := strings.TrimSpace(filter.CounterpartID); counterpartID != "" {
		query = query.Where(
			"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			viewerID, counterpartID, counterpartID, viewerID,
		)
	} else {
		query = query.Where("sender_id = ? OR receiver_id = ?", viewerID, viewerID)
	}

	var rows []models.Message
	if err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRead flips the read flag of a message addressed to receiverID. Messages
// the caller did not receive are reported as ErrNotFound.
func (s *MessageStore) MarkRead(ctx context.Context, receiverID, messageID string) (*models.Message, error) {
	ctx = ensureContext(ctx)

	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", strings.TrimSpace(messageID), strings.TrimSpace(receiverID)).
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !msg.Read {
		if err := s.db.WithContext(ctx).Model(&msg).Update("read", true).Error; err != nil {
			return nil, err
		}
	}

	return s.load(ctx, msg.ID)
}

// CountUnread counts messages addressed to receiverID that are still unread.
func (s *MessageStore) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where(map[string]any{"receiver_id": strings.TrimSpace(receiverID), "read": false}).
		Count(&count).Error
	return count, err
}

// LastSentAt returns when senderID last sent a message. ok is false when the
// user never sent one.
func (s *MessageStore) LastSentAt(ctx context.Context, senderID string) (at time.Time, ok bool, err error) {
	ctx = ensureContext(ctx)

	var msg models.Message
	err = s.db.WithContext(ctx).
		Select("id", "created_at").
		Where("sender_id = ?", strings.TrimSpace(senderID)).
		Order("created_at DESC").
		Take(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return msg.CreatedAt, true, nil
}

func (s *MessageStore) load(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("Receiver").
		First(&msg, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}
