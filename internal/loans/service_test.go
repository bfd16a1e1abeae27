package loans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

type sentEvent struct {
	userID uuid.UUID
	role   enums.Role
	event  notifications.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	toUser []sentEvent
	toRole []sentEvent
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID uuid.UUID, event notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toUser = append(r.toUser, sentEvent{userID: userID, event: event})
}

func (r *recordingNotifier) NotifyRole(_ context.Context, role enums.Role, event notifications.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toRole = append(r.toRole, sentEvent{role: role, event: event})
}

type countingMetrics struct {
	mu      sync.Mutex
	results []string
}

func (c *countingMetrics) ObserveLoanTransition(from, to, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, from+">"+to+":"+result)
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	repo     Repository
	items    items.Repository
	notifier *recordingNotifier
	metrics  *countingMetrics
	admin    access.Actor
	guru     access.Actor
	other    access.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	userRepo := users.NewRepository(conn)
	f := &fixture{
		conn:     conn,
		repo:     NewRepository(conn),
		items:    items.NewRepository(conn),
		notifier: &recordingNotifier{},
		metrics:  &countingMetrics{},
	}
	f.admin = seedActor(t, userRepo, "admin", enums.RoleAdmin)
	f.guru = seedActor(t, userRepo, "guru1", enums.RoleGuru)
	f.other = seedActor(t, userRepo, "guru2", enums.RoleGuru)

	svc, err := NewService(ServiceParams{
		Repo:     f.repo,
		Items:    f.items,
		Users:    userRepo,
		Tx:       db.Wrap(conn),
		Notifier: f.notifier,
		Metrics:  f.metrics,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func seedActor(t *testing.T, repo users.Repository, username string, role enums.Role) access.Actor {
	t.Helper()
	user, err := repo.Create(context.Background(), users.CreateUserDTO{
		Username:     username,
		PasswordHash: "x",
		Role:         role,
		Name:         "Name " + username,
	})
	require.NoError(t, err)
	return access.Actor{UserID: user.ID, Role: role}
}

func (f *fixture) seedItem(t *testing.T, stock int, condition enums.ItemCondition) *models.Item {
	t.Helper()
	item := &models.Item{
		Code:      "IT-" + uuid.NewString()[:6],
		Name:      "Microscope",
		Category:  "optics",
		Stock:     stock,
		Condition: condition,
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	item, err := f.items.FindByID(context.Background(), id)
	require.NoError(t, err)
	return item.Stock
}

func (f *fixture) request(t *testing.T, itemID uuid.UUID, qty int) *LoanDTO {
	t.Helper()
	borrow := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	back := borrow.AddDate(0, 0, 7)
	dto, err := f.svc.Create(context.Background(), f.guru, CreateInput{
		ItemID:     itemID,
		Quantity:   qty,
		BorrowDate: borrow,
		ReturnDate: &back,
	})
	require.NoError(t, err)
	return dto
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "error: %v", err)
}

func TestCreateLoanLeavesStockAndNotifiesAdmins(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 5, enums.ItemConditionGood)

	dto := f.request(t, item.ID, 2)

	assert.Equal(t, enums.LoanStatusPending, dto.Status)
	assert.Equal(t, f.guru.UserID, dto.UserID)
	require.NotNil(t, dto.Item)
	assert.Equal(t, item.Code, dto.Item.Code)
	require.NotNil(t, dto.Borrower)
	assert.Equal(t, "Name guru1", dto.Borrower.Name)
	assert.Equal(t, 5, f.stockOf(t, item.ID), "creating a request must not touch stock")

	require.Len(t, f.notifier.toRole, 1)
	sent := f.notifier.toRole[0]
	assert.Equal(t, enums.RoleAdmin, sent.role)
	assert.Equal(t, "New loan request", sent.event.Title)
	assert.Equal(t, enums.NotificationTypeInfo, sent.event.Type)
	assert.Equal(t, &dto.ID, sent.event.RelatedID)
}

func TestCreateLoanRules(t *testing.T) {
	f := newFixture(t)
	good := f.seedItem(t, 1, enums.ItemConditionGood)
	damaged := f.seedItem(t, 10, enums.ItemConditionDamaged)
	borrow := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	before := borrow.AddDate(0, 0, -1)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, CreateInput{ItemID: good.ID, Quantity: 1, BorrowDate: borrow})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: good.ID, Quantity: 0, BorrowDate: borrow})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: good.ID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: good.ID, Quantity: 1, BorrowDate: borrow, ReturnDate: &before})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: uuid.New(), Quantity: 1, BorrowDate: borrow})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: damaged.ID, Quantity: 1, BorrowDate: borrow})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, f.guru, CreateInput{ItemID: good.ID, Quantity: 2, BorrowDate: borrow})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	assert.Empty(t, f.notifier.toRole)
}

func TestLifecycleReconcilesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 5, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 2)

	approved, err := f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusApproved, approved.Status)
	assert.Equal(t, 3, f.stockOf(t, item.ID))

	borrowed, err := f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusBorrowed, borrowed.Status)
	assert.Equal(t, 3, f.stockOf(t, item.ID), "handing over an approved loan keeps the reservation")

	returned, err := f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusReturned)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusReturned, returned.Status)
	assert.Equal(t, 5, f.stockOf(t, item.ID))
	assert.Empty(t, returned.NextStatuses)

	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusReturned)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.Equal(t, 5, f.stockOf(t, item.ID), "repeating RETURNED must not add stock twice")

	require.Len(t, f.notifier.toUser, 3)
	titles := []string{}
	for _, sent := range f.notifier.toUser {
		assert.Equal(t, f.guru.UserID, sent.userID)
		titles = append(titles, sent.event.Title)
	}
	assert.Equal(t, []string{"Loan approved", "Equipment borrowed", "Equipment returned"}, titles)
	assert.Equal(t, enums.NotificationTypeSuccess, f.notifier.toUser[0].event.Type)
	assert.Equal(t, enums.NotificationTypeInfo, f.notifier.toUser[1].event.Type)
}

func TestDirectBorrowTakesStock(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 4, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 4)

	_, err := f.svc.Transition(context.Background(), f.admin, loan.ID, enums.LoanStatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, 0, f.stockOf(t, item.ID))
}

func TestApprovedLoanCanBeReturnedDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 2, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 1)

	_, err := f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusReturned)
	require.NoError(t, err)
	assert.Equal(t, 2, f.stockOf(t, item.ID))
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 3, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 1)

	_, err := f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusReturned)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.LoanStatusPending, details["from"])
	assert.Equal(t, enums.LoanStatusReturned, details["to"])

	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusPending)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusPending)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	_, err = f.svc.Transition(ctx, f.admin, loan.ID, enums.LoanStatusApproved)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	stored, err := f.repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusApproved, stored.Status)
	assert.Equal(t, 2, f.stockOf(t, item.ID))

	_, err = f.svc.Transition(ctx, f.admin, loan.ID, "LOST")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.Transition(ctx, f.admin, uuid.New(), enums.LoanStatusApproved)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestTransitionRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 3, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 1)

	_, err := f.svc.Transition(context.Background(), f.guru, loan.ID, enums.LoanStatusApproved)
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, 3, f.stockOf(t, item.ID))
}

func TestCompetingApprovalsRollBackOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 3, enums.ItemConditionGood)
	first := f.request(t, item.ID, 2)
	second := f.request(t, item.ID, 2)

	_, err := f.svc.Transition(ctx, f.admin, first.ID, enums.LoanStatusApproved)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.admin, second.ID, enums.LoanStatusApproved)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, details["available"])

	stored, err := f.repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusPending, stored.Status, "status change must roll back with the failed reservation")
	assert.Equal(t, 1, f.stockOf(t, item.ID))
	assert.Contains(t, f.metrics.results, "PENDING>APPROVED:INSUFFICIENT_STOCK")
}

func TestConcurrentApprovalsApplyOnce(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, 10, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 3)

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transition(context.Background(), f.admin, loan.ID, enums.LoanStatusApproved)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, pkgerrors.CodeInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, f.stockOf(t, item.ID))
}

func TestGetAndListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 10, enums.ItemConditionGood)
	mine := f.request(t, item.ID, 1)
	_ = f.request(t, item.ID, 1)

	_, err := f.svc.Get(ctx, f.other, mine.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	got, err := f.svc.Get(ctx, f.guru, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.Get(ctx, f.admin, mine.ID)
	require.NoError(t, err)

	none, err := f.svc.List(ctx, f.other, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.svc.List(ctx, f.admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.Transition(ctx, f.admin, mine.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	approved := enums.LoanStatusApproved
	filtered, err := f.svc.List(ctx, f.guru, &approved)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, mine.ID, filtered[0].ID)
}

func TestUpdateReturnDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 10, enums.ItemConditionGood)
	loan := f.request(t, item.ID, 1)

	later := loan.BorrowDate.AddDate(0, 0, 14)
	dto, err := f.svc.UpdateReturnDate(ctx, f.guru, loan.ID, &later)
	require.NoError(t, err)
	require.NotNil(t, dto.ReturnDate)
	assert.True(t, dto.ReturnDate.Equal(later))

	_, err = f.svc.UpdateReturnDate(ctx, f.other, loan.ID, &later)
	requireCode(t, err, pkgerrors.CodeForbidden)

	early := loan.BorrowDate.AddDate(0, 0, -1)
	_, err = f.svc.UpdateReturnDate(ctx, f.admin, loan.ID, &early)
	requireCode(t, err, pkgerrors.CodeValidation)

	cleared, err := f.svc.UpdateReturnDate(ctx, f.admin, loan.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.ReturnDate)
	stored, err := f.repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReturnDate)
}

type failingDirectory struct{}

func (failingDirectory) ListIDsByRole(context.Context, enums.Role) ([]uuid.UUID, error) {
	return nil, errors.New("directory offline")
}

func TestNotificationFailureDoesNotFailCreate(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	userRepo := users.NewRepository(conn)
	itemRepo := items.NewRepository(conn)
	guru := seedActor(t, userRepo, "guru1", enums.RoleGuru)

	emitter := notifications.NewEmitter(notifications.NewRepository(conn), failingDirectory{}, nil, nil)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Items:    itemRepo,
		Users:    userRepo,
		Tx:       db.Wrap(conn),
		Notifier: emitter,
	})
	require.NoError(t, err)

	item := &models.Item{Code: "MIC-1", Name: "Microscope", Category: "optics", Stock: 1, Condition: enums.ItemConditionGood}
	require.NoError(t, itemRepo.Create(context.Background(), item))

	dto, err := svc.Create(context.Background(), guru, CreateInput{ItemID: item.ID, Quantity: 1, BorrowDate: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusPending, dto.Status)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestApproveBorrowReturnThreeOfFive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 5, enums.ItemConditionGood)

	loan := f.request(t, item.ID, 3)
	assert.Equal(t, enums.LoanStatusPending, loan.Status)
	assert.Equal(t, 5, f.stockOf(t, item.ID))

	steps := []struct {
		to    enums.LoanStatus
		stock int
	}{
		{enums.LoanStatusApproved, 2},
		{enums.LoanStatusBorrowed, 2},
		{enums.LoanStatusReturned, 5},
	}
	for _, step := range steps {
		dto, err := f.svc.Transition(ctx, f.admin, loan.ID, step.to)
		require.NoError(t, err)
		assert.Equal(t, step.to, dto.Status)
		assert.Equal(t, step.stock, f.stockOf(t, item.ID), "after %s", step.to)
	}
}

func TestQuantityAboveStockCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 5, enums.ItemConditionGood)

	_, err := f.svc.Create(ctx, f.guru, CreateInput{
		ItemID:     item.ID,
		Quantity:   6,
		BorrowDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	all, err := f.svc.List(ctx, f.admin, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 5, f.stockOf(t, item.ID))
	assert.Empty(t, f.notifier.toRole)
}

func TestSecondApprovalOfLastUnitFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, 1, enums.ItemConditionGood)
	first := f.request(t, item.ID, 1)
	second := f.request(t, item.ID, 1)

	_, err := f.svc.Transition(ctx, f.admin, first.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, 0, f.stockOf(t, item.ID))

	_, err = f.svc.Transition(ctx, f.admin, second.ID, enums.LoanStatusApproved)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, 0, f.stockOf(t, item.ID))
}

// flakyUsers fails borrower lookups once fail is set.
type flakyUsers struct {
	UserReader
	fail bool
}

func (u *flakyUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if u.fail {
		return nil, errors.New("connection reset")
	}
	return u.UserReader.FindByIDs(ctx, ids)
}

func TestCommittedChangesSurviveBorrowerLookupFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userReader := &flakyUsers{UserReader: users.NewRepository(f.conn)}
	svc, err := NewService(ServiceParams{
		Repo:     f.repo,
		Items:    f.items,
		Users:    userReader,
		Tx:       db.Wrap(f.conn),
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	item := f.seedItem(t, 5, enums.ItemConditionGood)
	userReader.fail = true

	created, err := svc.Create(ctx, f.guru, CreateInput{
		ItemID:     item.ID,
		Quantity:   3,
		BorrowDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Nil(t, created.Borrower)
	require.NotNil(t, created.Item)
	require.Len(t, f.notifier.toRole, 1)

	approved, err := svc.Transition(ctx, f.admin, created.ID, enums.LoanStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, enums.LoanStatusApproved, approved.Status)
	assert.Nil(t, approved.Borrower)
	assert.Equal(t, 2, f.stockOf(t, item.ID))
	require.Len(t, f.notifier.toUser, 1)
	assert.Equal(t, f.guru.UserID, f.notifier.toUser[0].userID)
	assert.Equal(t, "Loan approved", f.notifier.toUser[0].event.Title)

	later := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateReturnDate(ctx, f.guru, created.ID, &later)
	require.NoError(t, err)
	require.NotNil(t, updated.ReturnDate)
}
