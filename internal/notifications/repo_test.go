package notifications

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
	"github.com/angelmondragon/labinventory-backend/pkg/pagination"
)

func seedUser(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Username:     "user-" + uuid.NewString()[:8],
		PasswordHash: "x",
		Role:         enums.RoleGuru,
		Name:         "Teacher",
	}
	require.NoError(t, conn.Create(&user).Error)
	return user.ID
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := seedUser(t, conn)
	other := seedUser(t, conn)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := make([]models.Notification, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, models.Notification{
			UserID:      userID,
			Title:       "n",
			Message:     "m",
			Type:        enums.NotificationTypeInfo,
			RelatedType: enums.NotificationRelatedSystem,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, repo.CreateMany(ctx, rows))
	require.NoError(t, repo.Create(ctx, &models.Notification{
		UserID: other, Title: "x", Message: "y", Type: enums.NotificationTypeInfo, RelatedType: enums.NotificationRelatedSystem,
	}))

	first, err := repo.List(ctx, ListQuery{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	last := first[len(first)-1]
	second, err := repo.List(ctx, ListQuery{
		UserID: userID,
		Limit:  10,
		Cursor: &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID},
	})
	require.NoError(t, err)
	require.Len(t, second, 3)
	require.True(t, second[0].CreatedAt.Before(last.CreatedAt))
}

func TestRepositoryReadFlags(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := seedUser(t, conn)
	now := time.Now().UTC()

	n := &models.Notification{UserID: userID, Title: "a", Message: "b", Type: enums.NotificationTypeWarning, RelatedType: enums.NotificationRelatedItem}
	require.NoError(t, repo.Create(ctx, n))
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: userID, Title: "c", Message: "d", Type: enums.NotificationTypeInfo, RelatedType: enums.NotificationRelatedSystem}))

	require.NoError(t, repo.SetRead(ctx, userID, n.ID, true, now))
	unread, err := repo.List(ctx, ListQuery{UserID: userID, Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, repo.SetRead(ctx, userID, n.ID, false, now))
	unread, err = repo.List(ctx, ListQuery{UserID: userID, Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread, 2)

	require.ErrorIs(t, repo.SetRead(ctx, uuid.New(), n.ID, true, now), db.ErrNotFound)

	count, err := repo.MarkAllRead(ctx, userID, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestRepositoryDeleteAndRetention(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := seedUser(t, conn)
	now := time.Now().UTC()

	old := &models.Notification{UserID: userID, Title: "old", Message: "m", Type: enums.NotificationTypeInfo, RelatedType: enums.NotificationRelatedSystem, CreatedAt: now.AddDate(0, 0, -40)}
	fresh := &models.Notification{UserID: userID, Title: "fresh", Message: "m", Type: enums.NotificationTypeInfo, RelatedType: enums.NotificationRelatedSystem, CreatedAt: now}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	require.ErrorIs(t, repo.Delete(ctx, uuid.New(), fresh.ID), db.ErrNotFound)

	removed, err := repo.DeleteOlderThan(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	require.NoError(t, repo.Delete(ctx, userID, fresh.ID))
	left, err := repo.List(ctx, ListQuery{UserID: userID, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, left)
}
