package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// Repository is the storage port for the equipment catalog. Adapters return
// db.ErrNotFound and db.ErrDuplicate for missing rows and code collisions.
type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
	FindByCode(ctx context.Context, code string) (*models.Item, error)
	List(ctx context.Context, filter ListFilter) ([]models.Item, error)
	// Update writes the descriptive columns. Stock is only written through
	// edit, and only while the row still holds edit.Expected; otherwise
	// ErrStockChanged is returned and nothing changes.
	Update(ctx context.Context, item *models.Item, edit *StockEdit) error
	Delete(ctx context.Context, id uuid.UUID) error
	// DecrementStock subtracts qty only while stock >= qty and reports whether it applied.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

// ErrStockChanged reports that a guarded stock edit lost a race with the loan workflow.
var ErrStockChanged = errors.New("item stock changed")

// StockEdit replaces stock with Value if it still equals Expected.
type StockEdit struct {
	Expected int
	Value    int
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Search    string
	Category  string
	Condition *enums.ItemCondition
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

func (r *repository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return db.Normalize(r.conn(ctx).Create(item).Error)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.conn(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &item, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}
	var rows []models.Item
	if err := r.conn(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Item, error) {
	var item models.Item
	if err := r.conn(ctx).Where("code = ?", code).First(&item).Error; err != nil {
		return nil, db.Normalize(err)
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Item, error) {
	query := r.conn(ctx).Model(&models.Item{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", like, like)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if filter.Condition != nil {
		query = query.Where("condition = ?", *filter.Condition)
	}

	var rows []models.Item
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Update(ctx context.Context, item *models.Item, edit *StockEdit) error {
	values := map[string]any{
		"code":        item.Code,
		"name":        item.Name,
		"category":    item.Category,
		"condition":   item.Condition,
		"description": item.Description,
		"updated_at":  item.UpdatedAt,
	}
	query := r.conn(ctx).Model(&models.Item{}).Where("id = ?", item.ID)
	if edit != nil {
		values["stock"] = edit.Value
		query = query.Where("stock = ?", edit.Expected)
	}
	result := query.Updates(values)
	if result.Error != nil {
		return db.Normalize(result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missOrStockChanged(ctx, item.ID, edit)
	}
	return nil
}

func (r *repository) missOrStockChanged(ctx context.Context, id uuid.UUID, edit *StockEdit) error {
	if edit == nil {
		return db.ErrNotFound
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrStockChanged
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn(ctx).Where("id = ?", id).Delete(&models.Item{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result := r.conn(ctx).
		Model(&models.Item{}).
		Where("id = ? AND stock >= ?", id, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	result := r.conn(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.ErrNotFound
	}
	return nil
}
