package database

import (
	"gorm.io/gorm"

	"github.com/steamsedu/steams/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.PushSubscription{},
		&models.Lesson{},
	)
}
