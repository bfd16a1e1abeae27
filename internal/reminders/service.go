package reminders

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

type LoanReader interface {
	ListActive(ctx context.Context, userID *uuid.UUID) ([]models.Loan, error)
}

type ItemReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
}

type UserReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// DefaultWindowDays is the look-ahead used when a listing names no window.
const DefaultWindowDays = 3

// ListParams narrows a reminder listing. A nil WithinDays uses
// DefaultWindowDays. Overdue loans are always listed.
type ListParams struct {
	WithinDays *int
}

type Service interface {
	List(ctx context.Context, actor access.Actor, params ListParams) ([]ReminderDTO, error)
	// Due returns reminders across all users due within days, for scheduled jobs.
	Due(ctx context.Context, days int) ([]ReminderDTO, error)
}

type ServiceParams struct {
	Loans    LoanReader
	Items    ItemReader
	Users    UserReader
	Location *time.Location
}

type service struct {
	loans LoanReader
	items ItemReader
	users UserReader
	loc   *time.Location
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Loans == nil || params.Items == nil || params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reminder readers required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		loans: params.Loans,
		items: params.Items,
		users: params.Users,
		loc:   loc,
		now:   time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, actor access.Actor, params ListParams) ([]ReminderDTO, error) {
	if err := access.Authorize(access.OpReminderList, actor, nil); err != nil {
		return nil, err
	}
	if params.WithinDays != nil && *params.WithinDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "within_days must not be negative").
			WithDetails(map[string]string{"within_days": "must be >= 0"})
	}
	within := DefaultWindowDays
	if params.WithinDays != nil {
		within = *params.WithinDays
	}
	return s.collect(ctx, access.Scope(actor), &within)
}

func (s *service) Due(ctx context.Context, days int) ([]ReminderDTO, error) {
	if days < 0 {
		days = 0
	}
	return s.collect(ctx, nil, &days)
}

func (s *service) collect(ctx context.Context, userID *uuid.UUID, withinDays *int) ([]ReminderDTO, error) {
	loans, err := s.loans.ListActive(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active loans")
	}
	reminders := Calculate(s.now(), loans, s.loc)
	if withinDays != nil {
		reminders = Within(reminders, *withinDays)
	}
	if len(reminders) == 0 {
		return []ReminderDTO{}, nil
	}

	itemSet := map[uuid.UUID]struct{}{}
	userSet := map[uuid.UUID]struct{}{}
	for _, r := range reminders {
		itemSet[r.ItemID] = struct{}{}
		userSet[r.UserID] = struct{}{}
	}
	itemRows, err := s.items.FindByIDs(ctx, setKeys(itemSet))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reminder items")
	}
	userRows, err := s.users.FindByIDs(ctx, setKeys(userSet))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load borrowers")
	}
	itemsByID := make(map[uuid.UUID]*models.Item, len(itemRows))
	for i := range itemRows {
		itemsByID[itemRows[i].ID] = &itemRows[i]
	}
	usersByID := make(map[uuid.UUID]*models.User, len(userRows))
	for i := range userRows {
		usersByID[userRows[i].ID] = &userRows[i]
	}

	out := make([]ReminderDTO, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, NewReminderDTO(r, itemsByID[r.ItemID], usersByID[r.UserID]))
	}
	return out, nil
}

func setKeys(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
