package notifications

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
	"github.com/angelmondragon/labinventory-backend/pkg/pagination"
)

// Service defines inbox operations for the calling user.
type Service interface {
	List(ctx context.Context, actor access.Actor, params ListParams) (*ListResult, error)
	SetRead(ctx context.Context, actor access.Actor, notificationID uuid.UUID, read bool) error
	MarkAllRead(ctx context.Context, actor access.Actor) (int64, error)
	Delete(ctx context.Context, actor access.Actor, notificationID uuid.UUID) error
	Post(ctx context.Context, actor access.Actor, input PostInput) (*NotificationDTO, error)
}

// UserChecker confirms a recipient exists before a manual post.
type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	repo  Repository
	users UserChecker
	now   func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []NotificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
}

// PostInput is a notification an admin sends to a single user.
type PostInput struct {
	UserID      uuid.UUID
	Title       string
	Message     string
	Type        enums.NotificationType
	RelatedType enums.NotificationRelatedType
	RelatedID   *uuid.UUID
}

// NewService wires notifications dependencies.
func NewService(repo Repository, users UserChecker) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user checker required")
	}
	return &service{repo: repo, users: users, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, actor access.Actor, params ListParams) (*ListResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}

	query := ListQuery{
		UserID:     actor.UserID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page, next := pagination.Trim(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	items := make([]NotificationDTO, 0, len(page))
	for _, row := range page {
		items = append(items, NewNotificationDTO(row))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) SetRead(ctx context.Context, actor access.Actor, notificationID uuid.UUID, read bool) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	if err := s.repo.SetRead(ctx, actor.UserID, notificationID, read, s.now()); err != nil {
		return mapOwnedError(err, "update notification")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, actor access.Actor) (int64, error) {
	if actor.UserID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, notificationID uuid.UUID) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	if err := s.repo.Delete(ctx, actor.UserID, notificationID); err != nil {
		return mapOwnedError(err, "delete notification")
	}
	return nil
}

func (s *service) Post(ctx context.Context, actor access.Actor, input PostInput) (*NotificationDTO, error) {
	if err := access.Authorize(access.OpNotificationBroadcast, actor, nil); err != nil {
		return nil, err
	}

	if input.Type == "" {
		input.Type = enums.NotificationTypeInfo
	}
	if input.RelatedType == "" {
		input.RelatedType = enums.NotificationRelatedSystem
	}
	fields := map[string]string{}
	if input.UserID == uuid.Nil {
		fields["user_id"] = "required"
	}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(input.Message) == "" {
		fields["message"] = "required"
	}
	if !input.Type.IsValid() {
		fields["type"] = "must be INFO, SUCCESS, WARNING or ERROR"
	}
	if !input.RelatedType.IsValid() {
		fields["related_type"] = "must be LOAN, DAMAGE_REPORT, ITEM or SYSTEM"
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification").WithDetails(fields)
	}

	exists, err := s.users.Exists(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	row := models.Notification{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Title:       strings.TrimSpace(input.Title),
		Message:     strings.TrimSpace(input.Message),
		Type:        input.Type,
		RelatedType: input.RelatedType,
		RelatedID:   input.RelatedID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, &row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	dto := NewNotificationDTO(row)
	return &dto, nil
}

func mapOwnedError(err error, msg string) error {
	if errors.Is(err, db.ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
