package damagereports

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

type ReportDTO struct {
	ID          uuid.UUID                `json:"id"`
	UserID      uuid.UUID                `json:"user_id"`
	ItemID      uuid.UUID                `json:"item_id"`
	Description string                   `json:"description"`
	PhotoURL    *string                  `json:"photo_url,omitempty"`
	Status      enums.DamageReportStatus `json:"status"`
	Item        *items.ItemSummary       `json:"item,omitempty"`
	Reporter    *users.UserSummary       `json:"reporter,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func NewReportDTO(report *models.DamageReport, item *models.Item, reporter *models.User) *ReportDTO {
	if report == nil {
		return nil
	}
	return &ReportDTO{
		ID:          report.ID,
		UserID:      report.UserID,
		ItemID:      report.ItemID,
		Description: report.Description,
		PhotoURL:    report.PhotoURL,
		Status:      report.Status,
		Item:        items.NewItemSummary(item),
		Reporter:    users.NewUserSummary(reporter),
		CreatedAt:   report.CreatedAt,
		UpdatedAt:   report.UpdatedAt,
	}
}
