package items

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// ItemDTO is the catalog entry returned to clients.
type ItemDTO struct {
	ID          uuid.UUID           `json:"id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Category    string              `json:"category"`
	Stock       int                 `json:"stock"`
	Condition   enums.ItemCondition `json:"condition"`
	Description *string             `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewItemDTO maps a stored item onto its response shape.
func NewItemDTO(item *models.Item) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:          item.ID,
		Code:        item.Code,
		Name:        item.Name,
		Category:    item.Category,
		Stock:       item.Stock,
		Condition:   item.Condition,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// ItemSummary is embedded in loan and damage report responses.
type ItemSummary struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
}

func NewItemSummary(item *models.Item) *ItemSummary {
	if item == nil {
		return nil
	}
	return &ItemSummary{ID: item.ID, Code: item.Code, Name: item.Name, Category: item.Category}
}
