package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

// reservingRepo reserves stock for a loan right after the service reads the
// item, the way an approval committing between read and write would.
type reservingRepo struct {
	Repository
	qty      int
	reserved bool
}

func (r *reservingRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := r.Repository.FindByID(ctx, id)
	if err != nil || r.reserved {
		return item, err
	}
	r.reserved = true
	ok, err := r.Repository.DecrementStock(ctx, id, r.qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, context.Canceled
	}
	return item, nil
}

func TestServiceUpdateKeepsStockReservedDuringEdit(t *testing.T) {
	base, _ := newSQLiteRepo(t)
	item := mustCreateTestItem(t, base, "MIC-05", 5, time.Now().UTC())
	repo := &reservingRepo{Repository: base, qty: 3}
	svc := newTestService(t, repo, stubLoanCounter{})

	name := "Compound microscope"
	dto, err := svc.Update(context.Background(), adminActor, item.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, dto.Name)
	require.Equal(t, 2, dto.Stock)

	stored, err := base.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Stock)

	require.NoError(t, base.IncrementStock(context.Background(), item.ID, 3))
	stored, err = base.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.Stock, "returning the loan restores the original count")
}

func TestServiceUpdateStockConflictsWithReservation(t *testing.T) {
	base, _ := newSQLiteRepo(t)
	item := mustCreateTestItem(t, base, "MIC-06", 5, time.Now().UTC())
	repo := &reservingRepo{Repository: base, qty: 3}
	svc := newTestService(t, repo, stubLoanCounter{})

	stock := 7
	name := "Renamed"
	_, err := svc.Update(context.Background(), adminActor, item.ID, UpdateInput{Name: &name, Stock: &stock})
	assertCode(t, err, pkgerrors.CodeConflict)

	stored, err := base.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Stock)
	require.Equal(t, "Item MIC-06", stored.Name, "a rejected stock edit writes nothing")
}

func TestRepositoryGuardedStockEdit(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	item := mustCreateTestItem(t, repo, "BKR-9", 4, time.Now().UTC())

	item.UpdatedAt = time.Now().UTC()
	require.ErrorIs(t, repo.Update(ctx, item, &StockEdit{Expected: 3, Value: 10}), ErrStockChanged)
	require.NoError(t, repo.Update(ctx, item, &StockEdit{Expected: 4, Value: 10}))

	reloaded, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 10, reloaded.Stock)

	missing := *item
	missing.ID = uuid.New()
	require.ErrorIs(t, repo.Update(ctx, &missing, &StockEdit{Expected: 4, Value: 1}), db.ErrNotFound)
}
