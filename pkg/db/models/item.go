package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Item is a piece of lab equipment and the number of units on the shelf.
type Item struct {
	ID          uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Code        string              `gorm:"column:code;not null;uniqueIndex"`
	Name        string              `gorm:"column:name;not null"`
	Category    string              `gorm:"column:category;not null"`
	Stock       int                 `gorm:"column:stock;not null;default:0"`
	Condition   enums.ItemCondition `gorm:"column:condition;type:text;not null"`
	Description *string             `gorm:"column:description"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
