package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/dbtest"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

func mustCreateTestItem(t *testing.T, repo Repository, code string, stock int, createdAt time.Time) *models.Item {
	t.Helper()
	item := &models.Item{
		Code:      code,
		Name:      "Item " + code,
		Category:  "optics",
		Stock:     stock,
		Condition: enums.ItemConditionGood,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func newSQLiteRepo(t *testing.T) (Repository, *gorm.DB) {
	conn := dbtest.NewSQLite(t)
	return NewRepository(conn), conn
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	item := mustCreateTestItem(t, repo, "MIC-01", 3, time.Now().UTC())
	require.NotEqual(t, uuid.Nil, item.ID)

	byID, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "MIC-01", byID.Code)
	require.Equal(t, 3, byID.Stock)

	byCode, err := repo.FindByCode(ctx, "MIC-01")
	require.NoError(t, err)
	require.Equal(t, item.ID, byCode.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	require.ErrorIs(t, err, db.ErrNotFound)

	many, err := repo.FindByIDs(ctx, []uuid.UUID{item.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, many, 1)
}

func TestRepositoryDuplicateCode(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	mustCreateTestItem(t, repo, "DUP-1", 1, time.Now().UTC())

	err := repo.Create(context.Background(), &models.Item{Code: "DUP-1", Name: "x", Category: "c", Condition: enums.ItemConditionGood})
	require.ErrorIs(t, err, db.ErrDuplicate)
}

func TestRepositoryDecrementStockIsConditional(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	item := mustCreateTestItem(t, repo, "BUR-01", 2, time.Now().UTC())

	ok, err := repo.DecrementStock(ctx, item.ID, 3)
	require.NoError(t, err)
	require.False(t, ok, "cannot take more than is on the shelf")

	ok, err = repo.DecrementStock(ctx, item.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	reloaded, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Stock)

	require.NoError(t, repo.IncrementStock(ctx, item.ID, 1))
	reloaded, err = repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Stock)

	require.ErrorIs(t, repo.IncrementStock(ctx, uuid.New(), 1), db.ErrNotFound)
}

func TestRepositoryListFiltersAndOrder(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := mustCreateTestItem(t, repo, "MIC-01", 1, base)
	newer := mustCreateTestItem(t, repo, "MIC-02", 1, base.Add(time.Hour))

	damaged := &models.Item{Code: "BEAKER-9", Name: "Glass beaker", Category: "glassware", Stock: 4, Condition: enums.ItemConditionDamaged, CreatedAt: base.Add(2 * time.Hour)}
	require.NoError(t, repo.Create(ctx, damaged))

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, damaged.ID, all[0].ID, "newest first")

	mic, err := repo.List(ctx, ListFilter{Search: "mic"})
	require.NoError(t, err)
	require.Len(t, mic, 2)
	require.Equal(t, newer.ID, mic[0].ID)
	require.Equal(t, older.ID, mic[1].ID)

	cond := enums.ItemConditionDamaged
	bad, err := repo.List(ctx, ListFilter{Condition: &cond})
	require.NoError(t, err)
	require.Len(t, bad, 1)

	glass, err := repo.List(ctx, ListFilter{Category: "glassware", Search: "beaker"})
	require.NoError(t, err)
	require.Len(t, glass, 1)
}

func TestRepositoryUpdateAndDelete(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()
	item := mustCreateTestItem(t, repo, "SCOPE-1", 5, time.Now().UTC())

	desc := "recalibrated"
	item.Name = "Scope"
	item.Description = &desc
	item.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, item, nil))

	reloaded, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "Scope", reloaded.Name)
	require.NotNil(t, reloaded.Description)

	other := mustCreateTestItem(t, repo, "SCOPE-2", 1, time.Now().UTC())
	other.Code = "SCOPE-1"
	require.ErrorIs(t, repo.Update(ctx, other, nil), db.ErrDuplicate)

	require.NoError(t, repo.Delete(ctx, item.ID))
	require.ErrorIs(t, repo.Delete(ctx, item.ID), db.ErrNotFound)
	require.ErrorIs(t, repo.Update(ctx, item, nil), db.ErrNotFound)
}

func TestRepositoryJoinsOuterTransaction(t *testing.T) {
	repo, conn := newSQLiteRepo(t)
	client := db.Wrap(conn)
	item := mustCreateTestItem(t, repo, "TX-1", 1, time.Now().UTC())

	err := client.WithTx(context.Background(), func(ctx context.Context) error {
		ok, err := repo.DecrementStock(ctx, item.ID, 1)
		require.NoError(t, err)
		require.True(t, ok)
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	reloaded, err := repo.FindByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Stock, "decrement must roll back with the transaction")
}
