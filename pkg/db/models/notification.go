package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Notification stores an in-app inbox entry for a single user.
type Notification struct {
	ID          uuid.UUID                     `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID                     `gorm:"type:uuid;column:user_id;not null"`
	Title       string                        `gorm:"column:title;not null"`
	Message     string                        `gorm:"column:message;not null"`
	Type        enums.NotificationType        `gorm:"column:type;type:text;not null"`
	RelatedType enums.NotificationRelatedType `gorm:"column:related_type;type:text;not null"`
	RelatedID   *uuid.UUID                    `gorm:"type:uuid;column:related_id"`
	IsRead      bool                          `gorm:"column:is_read;not null;default:false"`
	ReadAt      *time.Time                    `gorm:"column:read_at"`
	CreatedAt   time.Time                     `gorm:"column:created_at;autoCreateTime"`
}
