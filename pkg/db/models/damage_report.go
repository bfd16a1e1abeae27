package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

type DamageReport struct {
	ID          uuid.UUID                `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID                `gorm:"type:uuid;column:user_id;not null"`
	ItemID      uuid.UUID                `gorm:"type:uuid;column:item_id;not null"`
	Description string                   `gorm:"column:description;not null"`
	PhotoURL    *string                  `gorm:"column:photo_url"`
	Status      enums.DamageReportStatus `gorm:"column:status;type:text;not null"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
