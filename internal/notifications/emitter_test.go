package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

type fakeDirectory struct {
	ids   []uuid.UUID
	err   error
	roles []enums.Role
}

func (f *fakeDirectory) ListIDsByRole(_ context.Context, role enums.Role) ([]uuid.UUID, error) {
	f.roles = append(f.roles, role)
	return f.ids, f.err
}

type countingRecorder struct {
	failures map[string]int
	sent     map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{failures: map[string]int{}, sent: map[string]int{}}
}

func (c *countingRecorder) IncNotificationFailure(target string)      { c.failures[target]++ }
func (c *countingRecorder) AddNotificationsSent(target string, n int) { c.sent[target] += n }

func TestEmitterNotifyRoleBatchesRecipients(t *testing.T) {
	admins := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	dir := &fakeDirectory{ids: admins}
	var batches [][]models.Notification
	repo := &fakeRepository{
		createManyFn: func(_ context.Context, rows []models.Notification) error {
			batches = append(batches, rows)
			return nil
		},
	}
	rec := newCountingRecorder()
	emitter := NewEmitter(repo, dir, nil, rec)

	loanID := uuid.New()
	emitter.NotifyRole(context.Background(), enums.RoleAdmin, Event{
		Title:       "New loan request",
		Message:     "A teacher asked for 2 x Microscope",
		RelatedType: enums.NotificationRelatedLoan,
		RelatedID:   &loanID,
	})

	require.Len(t, batches, 1)
	require.Len(t, batches[0], len(admins))
	assert.Equal(t, []enums.Role{enums.RoleAdmin}, dir.roles)
	for i, row := range batches[0] {
		assert.Equal(t, admins[i], row.UserID)
		assert.Equal(t, enums.NotificationTypeInfo, row.Type)
		assert.Equal(t, &loanID, row.RelatedID)
		assert.NotEqual(t, uuid.Nil, row.ID)
		assert.False(t, row.CreatedAt.IsZero())
	}
	assert.Equal(t, 3, rec.sent["role"])
}

func TestEmitterSwallowsFailures(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(context.Context, *models.Notification) error { return errors.New("insert failed") },
	}
	rec := newCountingRecorder()
	emitter := NewEmitter(repo, &fakeDirectory{err: errors.New("lookup failed")}, nil, rec)

	require.NotPanics(t, func() {
		emitter.NotifyUser(context.Background(), uuid.New(), Event{Title: "Loan approved"})
		emitter.NotifyRole(context.Background(), enums.RoleAdmin, Event{Title: "New damage report"})
	})
	assert.Equal(t, 1, rec.failures["user"])
	assert.Equal(t, 1, rec.failures["role"])
	assert.Zero(t, rec.sent["user"])
}

func TestEmitterNotifyRoleWithoutRecipientsIsQuiet(t *testing.T) {
	called := false
	repo := &fakeRepository{
		createManyFn: func(context.Context, []models.Notification) error {
			called = true
			return nil
		},
	}
	NewEmitter(repo, &fakeDirectory{}, nil, nil).NotifyRole(context.Background(), enums.RoleAdmin, Event{Title: "x"})
	assert.False(t, called)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *Emitter
	require.NotPanics(t, func() {
		emitter.NotifyUser(context.Background(), uuid.New(), Event{})
		emitter.NotifyRole(context.Background(), enums.RoleGuru, Event{})
	})
}
