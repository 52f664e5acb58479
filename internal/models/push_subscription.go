package models

import "time"

// PushSubscription is one browser/device push endpoint registered by a user.
// (UserID, Endpoint) is the composite primary key; re-subscribing overwrites keys.
type PushSubscription struct {
	UserID   string `gorm:"primaryKey;type:char(36)" json:"userId"`
	Endpoint string `gorm:"primaryKey;type:varchar(700)" json:"endpoint"`
	Auth     string `gorm:"type:varchar(255);not null" json:"-"`
	P256dh   string `gorm:"column:p256dh;type:varchar(255);not null" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
