package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Loan is a request by a teacher to borrow a quantity of one item.
type Loan struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID        `gorm:"type:uuid;column:user_id;not null"`
	ItemID     uuid.UUID        `gorm:"type:uuid;column:item_id;not null"`
	Quantity   int              `gorm:"column:quantity;not null"`
	Status     enums.LoanStatus `gorm:"column:status;type:text;not null"`
	BorrowDate time.Time        `gorm:"column:borrow_date;not null"`
	ReturnDate *time.Time       `gorm:"column:return_date"`
	Notes      *string          `gorm:"column:notes"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
