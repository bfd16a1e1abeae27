package items

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

// Service exposes catalog operations.
type Service interface {
	Create(ctx context.Context, actor access.Actor, input CreateInput) (*ItemDTO, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*ItemDTO, error)
	List(ctx context.Context, actor access.Actor, filter ListFilter) ([]ItemDTO, error)
	Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateInput) (*ItemDTO, error)
	Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error
}

// OpenLoanCounter reports loans that still hold or may claim an item's stock.
type OpenLoanCounter interface {
	CountOpenByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}

type CreateInput struct {
	Code        string
	Name        string
	Category    string
	Stock       int
	Condition   enums.ItemCondition
	Description *string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Code        *string
	Name        *string
	Category    *string
	Stock       *int
	Condition   *enums.ItemCondition
	Description *string
}

type service struct {
	repo  Repository
	loans OpenLoanCounter
	now   func() time.Time
}

// NewService wires catalog dependencies.
func NewService(repo Repository, loans OpenLoanCounter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if loans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "open loan counter required")
	}
	return &service{repo: repo, loans: loans, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateInput) (*ItemDTO, error) {
	if err := access.Authorize(access.OpItemCreate, actor, nil); err != nil {
		return nil, err
	}

	if input.Condition == "" {
		input.Condition = enums.ItemConditionGood
	}
	item := &models.Item{
		Code:        strings.TrimSpace(input.Code),
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Stock:       input.Stock,
		Condition:   input.Condition,
		Description: trimOptional(input.Description),
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := s.ensureCodeAvailable(ctx, item.Code, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, mapWriteError(err, "create item")
	}
	return NewItemDTO(item), nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*ItemDTO, error) {
	if err := access.Authorize(access.OpItemRead, actor, nil); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewItemDTO(item), nil
}

func (s *service) List(ctx context.Context, actor access.Actor, filter ListFilter) ([]ItemDTO, error) {
	if err := access.Authorize(access.OpItemRead, actor, nil); err != nil {
		return nil, err
	}
	if filter.Condition != nil && !filter.Condition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid condition filter")
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewItemDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateInput) (*ItemDTO, error) {
	if err := access.Authorize(access.OpItemUpdate, actor, nil); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Code != nil {
		item.Code = strings.TrimSpace(*input.Code)
	}
	if input.Name != nil {
		item.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		item.Category = strings.TrimSpace(*input.Category)
	}
	var edit *StockEdit
	if input.Stock != nil {
		edit = &StockEdit{Expected: item.Stock, Value: *input.Stock}
		item.Stock = *input.Stock
	}
	if input.Condition != nil {
		item.Condition = *input.Condition
	}
	if input.Description != nil {
		item.Description = trimOptional(input.Description)
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if input.Code != nil {
		if err := s.ensureCodeAvailable(ctx, item.Code, item.ID); err != nil {
			return nil, err
		}
	}

	item.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, item, edit); err != nil {
		return nil, mapWriteError(err, "update item")
	}
	// Stock may have moved through a loan since the read.
	if fresh, err := s.repo.FindByID(ctx, item.ID); err == nil {
		item = fresh
	}
	return NewItemDTO(item), nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if err := access.Authorize(access.OpItemDelete, actor, nil); err != nil {
		return err
	}
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	open, err := s.loans.CountOpenByItem(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open loans")
	}
	if open > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "item has loans that are not returned").
			WithDetails(map[string]any{"open_loans": open})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapWriteError(err, "delete item")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}

func (s *service) ensureCodeAvailable(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check item code")
	case existing.ID == self:
		return nil
	default:
		return duplicateCode(code)
	}
}

func validateItem(item *models.Item) error {
	fields := map[string]string{}
	if item.Code == "" {
		fields["code"] = "required"
	}
	if item.Name == "" {
		fields["name"] = "required"
	}
	if item.Category == "" {
		fields["category"] = "required"
	}
	if item.Stock < 0 {
		fields["stock"] = "must be zero or greater"
	}
	if !item.Condition.IsValid() {
		fields["condition"] = "must be GOOD or DAMAGED"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid item").WithDetails(fields)
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateCode, err, "item code already exists")
	case errors.Is(err, db.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	case errors.Is(err, ErrStockChanged):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "item stock changed by a loan; reload and retry")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}

func duplicateCode(code string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicateCode, "item code already exists").
		WithDetails(map[string]any{"code": code})
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
