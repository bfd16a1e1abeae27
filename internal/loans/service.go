package loans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

// Service runs the loan request and approval workflow.
type Service interface {
	Create(ctx context.Context, actor access.Actor, input CreateInput) (*LoanDTO, error)
	Transition(ctx context.Context, actor access.Actor, loanID uuid.UUID, to enums.LoanStatus) (*LoanDTO, error)
	UpdateReturnDate(ctx context.Context, actor access.Actor, loanID uuid.UUID, returnDate *time.Time) (*LoanDTO, error)
	Get(ctx context.Context, actor access.Actor, loanID uuid.UUID) (*LoanDTO, error)
	List(ctx context.Context, actor access.Actor, status *enums.LoanStatus) ([]LoanDTO, error)
}

// ItemStore is the slice of the catalog the workflow reads and adjusts.
type ItemStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

// UserReader resolves borrower names.
type UserReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Notifier delivers workflow notifications; it never fails the caller.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event notifications.Event)
	NotifyRole(ctx context.Context, role enums.Role, event notifications.Event)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type transitionRecorder interface {
	ObserveLoanTransition(from, to, result string)
}

type CreateInput struct {
	ItemID     uuid.UUID
	Quantity   int
	BorrowDate time.Time
	ReturnDate *time.Time
	Notes      *string
}

// ServiceParams groups the loan workflow dependencies.
type ServiceParams struct {
	Repo     Repository
	Items    ItemStore
	Users    UserReader
	Tx       txRunner
	Notifier Notifier
	Metrics  transitionRecorder
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	items    ItemStore
	users    UserReader
	tx       txRunner
	notifier Notifier
	metrics  transitionRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "loans repository required")
	}
	if params.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "item store required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user reader required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:     params.Repo,
		items:    params.Items,
		users:    params.Users,
		tx:       params.Tx,
		notifier: params.Notifier,
		metrics:  metrics,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateInput) (*LoanDTO, error) {
	if err := access.Authorize(access.OpLoanCreate, actor, nil); err != nil {
		return nil, err
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	item, err := s.items.FindByID(ctx, input.ItemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if item.Condition == enums.ItemConditionDamaged {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item is damaged and cannot be borrowed").
			WithDetails(map[string]any{"item_id": item.ID, "condition": item.Condition})
	}
	if item.Stock < input.Quantity {
		return nil, insufficientStock(item.ID, item.Stock, input.Quantity)
	}

	now := s.now()
	loan := &models.Loan{
		ID:         uuid.New(),
		UserID:     actor.UserID,
		ItemID:     item.ID,
		Quantity:   input.Quantity,
		Status:     enums.LoanStatusPending,
		BorrowDate: input.BorrowDate.UTC(),
		ReturnDate: utcPtr(input.ReturnDate),
		Notes:      trimOptional(input.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loan")
	}

	dto := s.presentCommitted(ctx, loan, item)

	borrower := "A teacher"
	if dto.Borrower != nil && dto.Borrower.Name != "" {
		borrower = dto.Borrower.Name
	}
	s.notifier.NotifyRole(ctx, enums.RoleAdmin, notifications.Event{
		Title:       "New loan request",
		Message:     fmt.Sprintf("%s requested %d x %s (%s).", borrower, loan.Quantity, item.Name, item.Code),
		Type:        enums.NotificationTypeInfo,
		RelatedType: enums.NotificationRelatedLoan,
		RelatedID:   &loan.ID,
	})
	return dto, nil
}

func (s *service) Transition(ctx context.Context, actor access.Actor, loanID uuid.UUID, to enums.LoanStatus) (*LoanDTO, error) {
	if err := access.Authorize(access.OpLoanTransition, actor, nil); err != nil {
		return nil, err
	}
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid loan status").
			WithDetails(map[string]any{"status": to})
	}
	if loanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	ctx = s.logg.WithLoanID(ctx, loanID.String())

	var (
		from    enums.LoanStatus
		updated *models.Loan
	)
	err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		loan, err := s.load(txCtx, loanID)
		if err != nil {
			return err
		}
		from = loan.Status

		effect, ok := lookupTransition(from, to)
		if !ok {
			return invalidTransition(from, to)
		}

		now := s.now()
		applied, err := s.repo.TransitionStatus(txCtx, loan.ID, from, to, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update loan status")
		}
		if !applied {
			// another request moved the loan after it was read
			return invalidTransition(from, to)
		}

		switch effect {
		case stockTake:
			taken, err := s.items.DecrementStock(txCtx, loan.ItemID, loan.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !taken {
				return s.insufficientStockFor(txCtx, loan)
			}
		case stockRestore:
			if err := s.items.IncrementStock(txCtx, loan.ItemID, loan.Quantity); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		loan.Status = to
		loan.UpdatedAt = now
		updated = loan
		return nil
	})
	if err != nil {
		s.metrics.ObserveLoanTransition(string(from), string(to), string(pkgerrors.As(err).Code()))
		return nil, asTyped(err, "transition loan")
	}
	s.metrics.ObserveLoanTransition(string(from), string(to), "ok")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"from": from, "to": to}), "loan status changed")

	dto := s.presentCommitted(ctx, updated, nil)
	if event, ok := ownerEvent(updated, dto); ok {
		s.notifier.NotifyUser(ctx, updated.UserID, event)
	}
	return dto, nil
}

func (s *service) UpdateReturnDate(ctx context.Context, actor access.Actor, loanID uuid.UUID, returnDate *time.Time) (*LoanDTO, error) {
	loan, err := s.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.OpLoanUpdateReturnDate, actor, &loan.UserID); err != nil {
		return nil, err
	}

	returnDate = utcPtr(returnDate)
	if returnDate != nil && returnDate.Before(loan.BorrowDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return date cannot be before borrow date").
			WithDetails(map[string]string{"return_date": "must not be before borrow_date"})
	}

	now := s.now()
	if err := s.repo.UpdateReturnDate(ctx, loan.ID, returnDate, now); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return date")
	}
	loan.ReturnDate = returnDate
	loan.UpdatedAt = now
	return s.presentCommitted(ctx, loan, nil), nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, loanID uuid.UUID) (*LoanDTO, error) {
	loan, err := s.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(access.OpLoanRead, actor, &loan.UserID); err != nil {
		return nil, err
	}
	return s.present(ctx, loan)
}

func (s *service) List(ctx context.Context, actor access.Actor, status *enums.LoanStatus) ([]LoanDTO, error) {
	if err := access.Authorize(access.OpLoanList, actor, nil); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, err := s.repo.List(ctx, ListFilter{UserID: access.Scope(actor), Status: status})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list loans")
	}
	return s.presentMany(ctx, rows)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loan id required")
	}
	loan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan")
	}
	return loan, nil
}

func (s *service) insufficientStockFor(ctx context.Context, loan *models.Loan) error {
	available := -1
	if item, err := s.items.FindByID(ctx, loan.ItemID); err == nil {
		available = item.Stock
	} else if errors.Is(err, db.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return insufficientStock(loan.ItemID, available, loan.Quantity)
}

func (s *service) present(ctx context.Context, loan *models.Loan) (*LoanDTO, error) {
	out, err := s.presentMany(ctx, []models.Loan{*loan})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// presentCommitted builds the response for a change that is already stored.
// Lookup failures are logged and leave the item or borrower out.
func (s *service) presentCommitted(ctx context.Context, loan *models.Loan, item *models.Item) *LoanDTO {
	if item == nil {
		rows, err := s.items.FindByIDs(ctx, []uuid.UUID{loan.ItemID})
		if err != nil {
			s.logg.Error(ctx, "load loan item for response", err)
		} else if len(rows) == 1 {
			item = &rows[0]
		}
	}
	var borrower *models.User
	rows, err := s.users.FindByIDs(ctx, []uuid.UUID{loan.UserID})
	if err != nil {
		s.logg.Error(ctx, "load borrower for response", err)
	} else if len(rows) == 1 {
		borrower = &rows[0]
	}
	return NewLoanDTO(loan, item, borrower)
}

func (s *service) presentMany(ctx context.Context, rows []models.Loan) ([]LoanDTO, error) {
	out := make([]LoanDTO, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	itemIDs := make([]uuid.UUID, 0, len(rows))
	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		itemIDs = append(itemIDs, row.ItemID)
		userIDs = append(userIDs, row.UserID)
	}
	itemRows, err := s.items.FindByIDs(ctx, uniqueIDs(itemIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loan items")
	}
	userRows, err := s.users.FindByIDs(ctx, uniqueIDs(userIDs))
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
	for i := range rows {
		out = append(out, *NewLoanDTO(&rows[i], itemsByID[rows[i].ItemID], usersByID[rows[i].UserID]))
	}
	return out, nil
}

func ownerEvent(loan *models.Loan, dto *LoanDTO) (notifications.Event, bool) {
	itemName := "the item"
	if dto != nil && dto.Item != nil {
		itemName = dto.Item.Name
	}
	event := notifications.Event{
		RelatedType: enums.NotificationRelatedLoan,
		RelatedID:   &loan.ID,
	}
	switch loan.Status {
	case enums.LoanStatusApproved:
		event.Title = "Loan approved"
		event.Message = fmt.Sprintf("Your request for %d x %s was approved.", loan.Quantity, itemName)
		event.Type = enums.NotificationTypeSuccess
	case enums.LoanStatusBorrowed:
		event.Title = "Equipment borrowed"
		event.Message = fmt.Sprintf("%d x %s has been handed over to you.", loan.Quantity, itemName)
		event.Type = enums.NotificationTypeInfo
	case enums.LoanStatusReturned:
		event.Title = "Equipment returned"
		event.Message = fmt.Sprintf("%d x %s was checked back in. Thank you.", loan.Quantity, itemName)
		event.Type = enums.NotificationTypeSuccess
	default:
		return notifications.Event{}, false
	}
	return event, true
}

func validateCreate(input CreateInput) error {
	fields := map[string]string{}
	if input.ItemID == uuid.Nil {
		fields["item_id"] = "required"
	}
	if input.Quantity <= 0 {
		fields["quantity"] = "must be greater than zero"
	}
	if input.BorrowDate.IsZero() {
		fields["borrow_date"] = "required"
	}
	if input.ReturnDate != nil && !input.BorrowDate.IsZero() && input.ReturnDate.Before(input.BorrowDate) {
		fields["return_date"] = "must not be before borrow_date"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid loan request").WithDetails(fields)
	}
	return nil
}

func invalidTransition(from, to enums.LoanStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move loan from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to, "allowed": NextStatuses(from)})
}

func insufficientStock(itemID uuid.UUID, available, requested int) error {
	details := map[string]any{"item_id": itemID, "requested": requested}
	if available >= 0 {
		details["available"] = available
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock for this loan").WithDetails(details)
}

// asTyped keeps typed errors and wraps anything else from the transaction
// runner (begin or commit failures) as a dependency error.
func asTyped(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
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

type nopRecorder struct{}

func (nopRecorder) ObserveLoanTransition(string, string, string) {}
