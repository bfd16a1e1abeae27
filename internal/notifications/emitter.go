package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

// Event is one inbox message before it is addressed to users.
type Event struct {
	Title       string
	Message     string
	Type        enums.NotificationType
	RelatedType enums.NotificationRelatedType
	RelatedID   *uuid.UUID
}

// RoleDirectory resolves the users holding a role.
type RoleDirectory interface {
	ListIDsByRole(ctx context.Context, role enums.Role) ([]uuid.UUID, error)
}

type failureRecorder interface {
	IncNotificationFailure(target string)
	AddNotificationsSent(target string, n int)
}

// Emitter stores notifications as a side effect of workflow operations.
// Failures are logged and counted; callers never see them.
type Emitter struct {
	repo    Repository
	users   RoleDirectory
	logg    *logger.Logger
	metrics failureRecorder
	now     func() time.Time
}

// NewEmitter builds an emitter. A nil logger or recorder is replaced by a no-op.
func NewEmitter(repo Repository, users RoleDirectory, logg *logger.Logger, metrics failureRecorder) *Emitter {
	if logg == nil {
		logg = logger.Nop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Emitter{
		repo:    repo,
		users:   users,
		logg:    logg,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NotifyUser stores event in userID's inbox.
func (e *Emitter) NotifyUser(ctx context.Context, userID uuid.UUID, event Event) {
	if e == nil || e.repo == nil {
		return
	}
	row := e.build(userID, event)
	if err := e.repo.Create(ctx, &row); err != nil {
		e.fail(e.logg.WithField(ctx, "user_id", userID.String()), "user", event, err)
		return
	}
	e.metrics.AddNotificationsSent("user", 1)
}

// NotifyRole stores event in the inbox of every user holding role, in one batch.
func (e *Emitter) NotifyRole(ctx context.Context, role enums.Role, event Event) {
	if e == nil || e.repo == nil || e.users == nil {
		return
	}
	logCtx := e.logg.WithField(ctx, "target_role", string(role))

	ids, err := e.users.ListIDsByRole(ctx, role)
	if err != nil {
		e.fail(logCtx, "role", event, err)
		return
	}
	if len(ids) == 0 {
		e.logg.Debug(logCtx, "no recipients for role notification")
		return
	}

	rows := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, e.build(id, event))
	}
	if err := e.repo.CreateMany(ctx, rows); err != nil {
		e.fail(logCtx, "role", event, err)
		return
	}
	e.metrics.AddNotificationsSent("role", len(rows))
}

func (e *Emitter) build(userID uuid.UUID, event Event) models.Notification {
	kind := event.Type
	if kind == "" {
		kind = enums.NotificationTypeInfo
	}
	related := event.RelatedType
	if related == "" {
		related = enums.NotificationRelatedSystem
	}
	return models.Notification{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       event.Title,
		Message:     event.Message,
		Type:        kind,
		RelatedType: related,
		RelatedID:   event.RelatedID,
		CreatedAt:   e.now(),
	}
}

func (e *Emitter) fail(ctx context.Context, target string, event Event, err error) {
	e.metrics.IncNotificationFailure(target)
	ctx = e.logg.WithFields(ctx, map[string]any{
		"notification_title": event.Title,
		"related_type":       string(event.RelatedType),
	})
	e.logg.Error(ctx, "failed to store notification", err)
}

type nopRecorder struct{}

func (nopRecorder) IncNotificationFailure(string)    {}
func (nopRecorder) AddNotificationsSent(string, int) {}
