package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification stores in-app notifications addressed to one account.
type Notification struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	Title     string     `gorm:"column:title;not null"`
	Body      string     `gorm:"column:body;not null"`
	Link      *string    `gorm:"column:link"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
