package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// NotificationDTO is an inbox entry as returned to clients.
type NotificationDTO struct {
	ID          uuid.UUID                     `json:"id"`
	Title       string                        `json:"title"`
	Message     string                        `json:"message"`
	Type        enums.NotificationType        `json:"type"`
	RelatedType enums.NotificationRelatedType `json:"related_type"`
	RelatedID   *uuid.UUID                    `json:"related_id,omitempty"`
	IsRead      bool                          `json:"is_read"`
	ReadAt      *time.Time                    `json:"read_at,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
}

func NewNotificationDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		Type:        n.Type,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}
