package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/models"
)

// LessonStore is a read-only view over lesson records.
type LessonStore struct {
	db *gorm.DB
}

// NewLessonStore constructs a lesson store backed by db.
func NewLessonStore(db *gorm.DB) (*LessonStore, error) {
	if db == nil {
		return nil, errors.New("lesson store: db is required")
	}
	return &LessonStore{db: db}, nil
}

// Get returns the lesson with id, or ErrNotFound.
func (s *LessonStore) Get(ctx context.Context, id string) (*models.Lesson, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var lesson models.Lesson
	if err := s.db.WithContext(ensureContext(ctx)).First(&lesson, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lesson, nil
}

// CountByPath returns how many lessons belong to a learning path.
func (s *LessonStore) CountByPath(ctx context.Context, path string) (int64, error) {
	var count int64
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Lesson{}).
		Where("learning_path = ?", strings.TrimSpace(path)).
		Count(&count).Error
	return count, err
}
