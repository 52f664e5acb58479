package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/models"
)

// UserStore resolves display data for user identifiers.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore constructs a user store backed by db.
func NewUserStore(db *gorm.DB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("user store: db is required")
	}
	return &UserStore{db: db}, nil
}

// Get returns the user with id, or ErrNotFound.
func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	var user models.User
	if err := s.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a user record.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user store: user is required")
	}
	return s.db.WithContext(ensureContext(ctx)).Create(user).Error
}
