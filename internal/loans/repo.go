package loans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Repository is the storage port for loans. Status writes go through
// TransitionStatus so a concurrent change is detected instead of overwritten.
type Repository interface {
	Create(ctx context.Context, loan *models.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	List(ctx context.Context, filter ListFilter) ([]models.Loan, error)
	// ListActive returns APPROVED and BORROWED loans, optionally for one user.
	ListActive(ctx context.Context, userID *uuid.UUID) ([]models.Loan, error)
	// TransitionStatus moves the loan from -> to only if it is still in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LoanStatus, at time.Time) (bool, error)
	UpdateReturnDate(ctx context.Context, id uuid.UUID, returnDate *time.Time, at time.Time) error
	CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
	CountOpenByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ListFilter narrows loan listings; nil fields are ignored.
type ListFilter struct {
	UserID       *uuid.UUID
	ItemID       *uuid.UUID
	Status       *enums.LoanStatus
	CreatedAfter *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns the relational adapter.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *repository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	return db.Normalize(r.conn(ctx).Create(loan).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.conn(ctx).Where("id = ?", id).First(&loan).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &loan, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Loan, error) {
	query := r.conn(ctx).Model(&models.Loan{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ItemID != nil {
		query = query.Where("item_id = ?", *filter.ItemID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", filter.CreatedAfter.UTC())
	}

	var rows []models.Loan
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListActive(ctx context.Context, userID *uuid.UUID) ([]models.Loan, error) {
	query := r.conn(ctx).
		Model(&models.Loan{}).
		Where("status IN ?", []enums.LoanStatus{enums.LoanStatusApproved, enums.LoanStatusBorrowed})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var rows []models.Loan
	if err := query.Order("return_date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LoanStatus, at time.Time) (bool, error) {
	result := r.conn(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateReturnDate(ctx context.Context, id uuid.UUID, returnDate *time.Time, at time.Time) error {
	result := r.conn(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"return_date": returnDate,
			"updated_at":  at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repository) CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error) {
	return r.countOpen(ctx, "item_id = ?", itemID)
}

func (r *repository) CountOpenByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.countOpen(ctx, "user_id = ?", userID)
}

func (r *repository) countOpen(ctx context.Context, clause string, id uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&models.Loan{}).
		Where(clause, id).
		Where("status <> ?", enums.LoanStatusReturned).
		Count(&count).Error
	return count, err
}
