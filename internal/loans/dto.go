package loans

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// LoanDTO is a loan with its item and borrower resolved for display.
type LoanDTO struct {
	ID           uuid.UUID          `json:"id"`
	UserID       uuid.UUID          `json:"user_id"`
	ItemID       uuid.UUID          `json:"item_id"`
	Quantity     int                `json:"quantity"`
	Status       enums.LoanStatus   `json:"status"`
	BorrowDate   time.Time          `json:"borrow_date"`
	ReturnDate   *time.Time         `json:"return_date,omitempty"`
	Notes        *string            `json:"notes,omitempty"`
	Item         *items.ItemSummary `json:"item,omitempty"`
	Borrower     *users.UserSummary `json:"borrower,omitempty"`
	NextStatuses []enums.LoanStatus `json:"next_statuses"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func NewLoanDTO(loan *models.Loan, item *models.Item, borrower *models.User) *LoanDTO {
	if loan == nil {
		return nil
	}
	return &LoanDTO{
		ID:           loan.ID,
		UserID:       loan.UserID,
		ItemID:       loan.ItemID,
		Quantity:     loan.Quantity,
		Status:       loan.Status,
		BorrowDate:   loan.BorrowDate,
		ReturnDate:   loan.ReturnDate,
		Notes:        loan.Notes,
		Item:         items.NewItemSummary(item),
		Borrower:     users.NewUserSummary(borrower),
		NextStatuses: NextStatuses(loan.Status),
		CreatedAt:    loan.CreatedAt,
		UpdatedAt:    loan.UpdatedAt,
	}
}
