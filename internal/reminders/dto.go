package reminders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

type ReminderDTO struct {
	LoanID       uuid.UUID        `json:"loan_id"`
	UserID       uuid.UUID        `json:"user_id"`
	ItemID       uuid.UUID        `json:"item_id"`
	ItemName     string           `json:"item_name"`
	ItemCode     string           `json:"item_code"`
	BorrowerName string           `json:"borrower_name"`
	Quantity     int              `json:"quantity"`
	Status       enums.LoanStatus `json:"status"`
	BorrowDate   time.Time        `json:"borrow_date"`
	ReturnDate   time.Time        `json:"return_date"`
	DaysUntilDue int              `json:"days_until_due"`
	IsOverdue    bool             `json:"is_overdue"`
	DaysOverdue  int              `json:"days_overdue"`
}

func NewReminderDTO(r Reminder, item *models.Item, borrower *models.User) ReminderDTO {
	dto := ReminderDTO{
		LoanID:       r.LoanID,
		UserID:       r.UserID,
		ItemID:       r.ItemID,
		Quantity:     r.Quantity,
		Status:       r.Status,
		BorrowDate:   r.BorrowDate,
		ReturnDate:   r.ReturnDate,
		DaysUntilDue: r.DaysUntilDue,
		IsOverdue:    r.IsOverdue,
		DaysOverdue:  r.DaysOverdue,
	}
	if item != nil {
		dto.ItemName = item.Name
		dto.ItemCode = item.Code
	}
	if borrower != nil {
		dto.BorrowerName = borrower.Name
	}
	return dto
}
