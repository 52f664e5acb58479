package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/store"
	"github.com/steamsedu/steams/pkg/logger"
	"github.com/steamsedu/steams/pkg/metrics"
)

// MaxMessageLength bounds message content, counted in runes.
const MaxMessageLength = 4000

// Broadcaster delivers events to a user's live connections.
type Broadcaster interface {
	Broadcast(userID string, event realtime.Event) int
}

// MessageStore is the durable message store.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	QueryMessages(ctx context.Context, filter store.MessageFilter) ([]models.Message, error)
	MarkRead(ctx context.Context, receiverID, messageID string) (*models.Message, error)
}

// UserLookup resolves user identifiers.
type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// MessageDTO is the message shape returned by the API and carried by live
// events: the persisted record plus sender and receiver display fields.
type MessageDTO struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"senderId"`
	ReceiverID string              `json:"receiverId"`
	Content    string              `json:"content"`
	CreatedAt  time.Time           `json:"createdAt"`
	Read       bool                `json:"read"`
	Sender     *models.Participant `json:"sender,omitempty"`
	Receiver   *models.Participant `json:"receiver,omitempty"`
}

// MessageService persists direct messages and fans them out to both participants.
type MessageService struct {
	messages MessageStore
	users    UserLookup
	rooms    Broadcaster
	locks    *conversationLocks
	log      *zap.Logger
}

// NewMessageService constructs a message service.
func NewMessageService(messages MessageStore, users UserLookup, rooms Broadcaster) (*MessageService, error) {
	if messages == nil {
		return nil, errors.New("message service: message store is required")
	}
	if users == nil {
		return nil, errors.New("message service: user lookup is required")
	}
	if rooms == nil {
		return nil, errors.New("message service: broadcaster is required")
	}
	return &MessageService{
		messages: messages,
		users:    users,
		rooms:    rooms,
		locks:    newConversationLocks(),
		log:      logger.WithModule("messages"),
	}, nil
}

// Send persists a message and then broadcasts it to the receiver's and the
// sender's rooms. Nothing is broadcast when persistence fails. Sends within
// one conversation are serialised so live delivery follows persistence order.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrUnauthorized
	}
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, fmt.Errorf("%w: receiverId is required", ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, MaxMessageLength)
	}

	if _, err := s.users.Get(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: receiver does not exist", ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	unlock := s.locks.lock(senderID, receiverID)
	defer unlock()

	record, err := s.messages.InsertMessage(ctx, &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	})
	if err != nil {
		s.log.Error("persist message", zap.String("sender_id", senderID), zap.String("receiver_id", receiverID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesSent.Inc()

	dto := toMessageDTO(record)
	event := realtime.Event{Name: realtime.EventNewMessage, Data: dto}
	delivered := s.rooms.Broadcast(receiverID, event)
	if senderID != receiverID {
		delivered += s.rooms.Broadcast(senderID, event)
	}
	s.log.Debug("message sent",
		zap.String("message_id", dto.ID),
		zap.Int("connections", delivered),
	)

	return &dto, nil
}

// List returns the viewer's messages, optionally limited to one counterpart,
// oldest first.
func (s *MessageService) List(ctx context.Context, viewerID, counterpartID string) ([]MessageDTO, error) {
	ctx = ensureContext(ctx)

	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil, ErrUnauthorized
	}

	rows, err := s.messages.QueryMessages(ctx, store.MessageFilter{
		ViewerID:      viewerID,
		CounterpartID: strings.TrimSpace(counterpartID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	out := make([]MessageDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toMessageDTO(&rows[i]))
	}
	return out, nil
}

// MarkRead sets the read flag on a message addressed to the viewer and tells
// the sender's devices about it.
func (s *MessageService) MarkRead(ctx context.Context, viewerID, messageID string) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return nil, ErrUnauthorized
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrValidation)
	}

	record, err := s.messages.MarkRead(ctx, viewerID, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	dto := toMessageDTO(record)
	s.rooms.Broadcast(record.SenderID, realtime.Event{Name: realtime.EventMessageRead, Data: dto})
	return &dto, nil
}

func toMessageDTO(m *models.Message) MessageDTO {
	return MessageDTO{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		Read:       m.Read,
		Sender:     m.Sender.AsParticipant(),
		Receiver:   m.Receiver.AsParticipant(),
	}
}
