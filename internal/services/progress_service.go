package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steamsedu/steams/internal/models"
	"github.com/steamsedu/steams/internal/realtime"
	"github.com/steamsedu/steams/internal/store"
)

// LessonLookup resolves lesson records.
type LessonLookup interface {
	Get(ctx context.Context, id string) (*models.Lesson, error)
}

// ProgressInput reports lesson completion by the caller.
type ProgressInput struct {
	LessonID       string
	PathName       string
	CompletedCount int
}

// ProgressService relays progress updates to the learner's live connections.
type ProgressService struct {
	lessons LessonLookup
	rooms   Broadcaster
	timeNow func() time.Time
}

// NewProgressService constructs a progress service.
func NewProgressService(lessons LessonLookup, rooms Broadcaster) (*ProgressService, error) {
	if lessons == nil {
		return nil, errors.New("progress service: lesson lookup is required")
	}
	if rooms == nil {
		return nil, errors.New("progress service: broadcaster is required")
	}
	return &ProgressService{lessons: lessons, rooms: rooms, timeNow: time.Now}, nil
}

// Record broadcasts a progressUpdate event to userID's room.
func (s *ProgressService) Record(ctx context.Context, userID string, input ProgressInput) (*realtime.ProgressUpdate, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	lessonID := strings.TrimSpace(input.LessonID)
	if lessonID == "" {
		return nil, fmt.Errorf("%w: lessonId is required", ErrValidation)
	}
	if input.CompletedCount < 0 {
		return nil, fmt.Errorf("%w: completedCount must not be negative", ErrValidation)
	}

	lesson, err := s.lessons.Get(ctx, lessonID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	pathName := strings.TrimSpace(input.PathName)
	if pathName == "" {
		pathName = lesson.LearningPath
	}
	update := &realtime.ProgressUpdate{
		UserID:         userID,
		LessonID:       lesson.ID,
		LessonTitle:    lesson.Title,
		PathName:       pathName,
		CompletedCount: input.CompletedCount,
		Timestamp:      s.timeNow().UnixMilli(),
	}
	s.rooms.Broadcast(userID, realtime.Event{Name: realtime.EventProgressUpdate, Data: update})
	return update, nil
}
