package damagereports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Repository is the storage port for damage reports.
type Repository interface {
	Create(ctx context.Context, report *models.DamageReport) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DamageReport, error)
	List(ctx context.Context, filter ListFilter) ([]models.DamageReport, error)
	// Complete moves a PENDING report to DONE and reports whether it applied.
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type ListFilter struct {
	UserID       *uuid.UUID
	ItemID       *uuid.UUID
	Status       *enums.DamageReportStatus
	CreatedAfter *time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) conn(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *repository) Create(ctx context.Context, report *models.DamageReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return db.Normalize(r.conn(ctx).Create(report).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	var report models.DamageReport
	if err := r.conn(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &report, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.DamageReport, error) {
	query := r.conn(ctx).Model(&models.DamageReport{})
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

	var rows []models.DamageReport
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.conn(ctx).
		Model(&models.DamageReport{}).
		Where("id = ? AND status = ?", id, enums.DamageReportStatusPending).
		Updates(map[string]any{
			"status":     enums.DamageReportStatusDone,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
