package damagereports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/storage/local"
)

const (
	photoDir             = "damage-reports"
	maxDescriptionLength = 2000
)

// Service files damage reports against catalog items and resolves them.
type Service interface {
	Create(ctx context.Context, actor access.Actor, input CreateInput) (*ReportDTO, error)
	Complete(ctx context.Context, actor access.Actor, reportID uuid.UUID) (*ReportDTO, error)
	Get(ctx context.Context, actor access.Actor, reportID uuid.UUID) (*ReportDTO, error)
	List(ctx context.Context, actor access.Actor, status *enums.DamageReportStatus) ([]ReportDTO, error)
}

type ItemReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
}

type UserReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event notifications.Event)
	NotifyRole(ctx context.Context, role enums.Role, event notifications.Event)
}

type photoStore interface {
	Save(ctx context.Context, dir string, r io.Reader, maxBytes int64, allowed []string) (local.Object, error)
	Delete(ctx context.Context, url string) error
}

// CreateInput carries a new report. Photo is optional.
type CreateInput struct {
	ItemID      uuid.UUID
	Description string
	Photo       io.Reader
}

type ServiceParams struct {
	Repo     Repository
	Items    ItemReader
	Users    UserReader
	Photos   photoStore
	Notifier Notifier
	MaxPhoto int64
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	items    ItemReader
	users    UserReader
	photos   photoStore
	notifier Notifier
	maxPhoto int64
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "damage report repository required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "item reader required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user reader required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		items:    params.Items,
		users:    params.Users,
		photos:   params.Photos,
		notifier: params.Notifier,
		maxPhoto: params.MaxPhoto,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateInput) (*ReportDTO, error) {
	if err := access.Authorize(access.OpDamageCreate, actor, nil); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if err := validateCreate(input.ItemID, description); err != nil {
		return nil, err
	}

	item, err := s.items.FindByID(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}

	var photoURL *string
	if input.Photo != nil {
		if s.photos == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "photo storage not configured")
		}
		obj, err := s.photos.Save(ctx, photoDir, input.Photo, s.maxPhoto, local.ImageTypes)
		if err != nil && !errors.Is(err, local.ErrEmpty) {
			return nil, local.Classify(err)
		}
		if err == nil {
			photoURL = &obj.URL
		}
	}

	now := s.now()
	report := &models.DamageReport{
		ID:          uuid.New(),
		UserID:      actor.UserID,
		ItemID:      item.ID,
		Description: description,
		PhotoURL:    photoURL,
		Status:      enums.DamageReportStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		if photoURL != nil {
			_ = s.photos.Delete(ctx, *photoURL)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create damage report")
	}

	dto := s.presentCommitted(ctx, report, item)
	reporter := "A teacher"
	if dto.Reporter != nil && dto.Reporter.Name != "" {
		reporter = dto.Reporter.Name
	}
	s.notifier.NotifyRole(ctx, enums.RoleAdmin, notifications.Event{
		Title:       "New damage report",
		Message:     fmt.Sprintf("%s reported damage on %s (%s).", reporter, item.Name, item.Code),
		Type:        enums.NotificationTypeWarning,
		RelatedType: enums.NotificationRelatedDamageReport,
		RelatedID:   &report.ID,
	})
	return dto, nil
}

// Complete marks a report DONE. Completing a report that is already DONE
// returns it unchanged and sends nothing.
func (s *service) Complete(ctx context.Context, actor access.Actor, reportID uuid.UUID) (*ReportDTO, error) {
	if err := access.Authorize(access.OpDamageComplete, actor, nil); err != nil {
		return nil, err
	}
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == enums.DamageReportStatusDone {
		return s.present(ctx, report)
	}

	now := s.now()
	applied, err := s.repo.Complete(ctx, report.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete damage report")
	}
	if !applied {
		// completed concurrently
		if report, err = s.load(ctx, reportID); err != nil {
			return nil, err
		}
		return s.present(ctx, report)
	}
	report.Status = enums.DamageReportStatusDone
	report.UpdatedAt = now

	dto := s.presentCommitted(ctx, report, nil)
	itemName := "the item"
	if dto.Item != nil {
		itemName = dto.Item.Name
	}
	s.notifier.NotifyUser(ctx, report.UserID, notifications.Event{
		Title:       "Damage report resolved",
		Message:     fmt.Sprintf("Your damage report for %s has been handled.", itemName),
		Type:        enums.NotificationTypeSuccess,
		RelatedType: enums.NotificationRelatedDamageReport,
		RelatedID:   &report.ID,
	})
	return dto, nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, reportID uuid.UUID) (*ReportDTO, error) {
	report, err := s.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.OpDamageRead, actor, &report.UserID); err != nil {
		return nil, err
	}
	return s.present(ctx, report)
}

func (s *service) List(ctx context.Context, actor access.Actor, status *enums.DamageReportStatus) ([]ReportDTO, error) {
	if err := access.Authorize(access.OpDamageList, actor, nil); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, ListFilter{UserID: access.Scope(actor), Status: status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list damage reports")
	}
	return s.presentMany(ctx, rows)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.DamageReport, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "damage report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load damage report")
	}
	return report, nil
}

func (s *service) present(ctx context.Context, report *models.DamageReport) (*ReportDTO, error) {
	out, err := s.presentMany(ctx, []models.DamageReport{*report})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// presentCommitted builds the response for a report that is already stored.
// Lookup failures are logged and leave the item or reporter out.
func (s *service) presentCommitted(ctx context.Context, report *models.DamageReport, item *models.Item) *ReportDTO {
	if item == nil {
		rows, err := s.items.FindByIDs(ctx, []uuid.UUID{report.ItemID})
		if err != nil {
			s.logg.Error(ctx, "load report item for response", err)
		} else if len(rows) == 1 {
			item = &rows[0]
		}
	}
	var reporter *models.User
	rows, err := s.users.FindByIDs(ctx, []uuid.UUID{report.UserID})
	if err != nil {
		s.logg.Error(ctx, "load reporter for response", err)
	} else if len(rows) == 1 {
		reporter = &rows[0]
	}
	return NewReportDTO(report, item, reporter)
}

func (s *service) presentMany(ctx context.Context, rows []models.DamageReport) ([]ReportDTO, error) {
	out := make([]ReportDTO, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	itemIDs := map[uuid.UUID]struct{}{}
	userIDs := map[uuid.UUID]struct{}{}
	for _, row := range rows {
		itemIDs[row.ItemID] = struct{}{}
		userIDs[row.UserID] = struct{}{}
	}
	itemRows, err := s.items.FindByIDs(ctx, keys(itemIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report items")
	}
	userRows, err := s.users.FindByIDs(ctx, keys(userIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reporters")
	}
	itemsByID := make(map[uuid.UUID]*models.Item, len(itemRows))
	for i := range itemRows {
		itemsByID[itemRows[i].ID] = &itemRows[i]
	}
	usersByID := make(map[uuid.UUID]*models.User, len(userRows))
	for i := range userRows {
		usersByID[userRows[i].ID] = &userRows[i]
	}
	for i := range rows {
		out = append(out, *NewReportDTO(&rows[i], itemsByID[rows[i].ItemID], usersByID[rows[i].UserID]))
	}
	return out, nil
}

func validateCreate(itemID uuid.UUID, description string) error {
	fields := map[string]string{}
	if itemID == uuid.Nil {
		fields["item_id"] = "required"
	}
	switch {
	case description == "":
		fields["description"] = "required"
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		fields["description"] = fmt.Sprintf("must be at most %d characters", maxDescriptionLength)
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid damage report").WithDetails(fields)
	}
	return nil
}

func keys(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
