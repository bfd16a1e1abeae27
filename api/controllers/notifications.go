package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/pagination"
)

type setReadRequest struct {
	Read *bool `json:"read" validate:"required"`
}

type postNotificationRequest struct {
	UserID      string  `json:"user_id" validate:"required,uuid"`
	Title       string  `json:"title" validate:"required,max=255"`
	Message     string  `json:"message" validate:"required,max=2000"`
	Type        string  `json:"type"`
	RelatedType string  `json:"related_type"`
	RelatedID   *string `json:"related_id" validate:"omitempty,uuid"`
}

// ListNotifications returns a page of the caller's inbox.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "notifications")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unread, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor, notifications.ListParams{
			Limit:      limit,
			Cursor:     validators.QueryString(r, "cursor", 256),
			UnreadOnly: unread,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SetNotificationRead marks one notification read or unread.
func SetNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "notifications")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setReadRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetRead(r.Context(), actor, id, *body.Read); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "read": *body.Read})
	}
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "notifications")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		updated, err := svc.MarkAllRead(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"updated": updated})
	}
}

func DeleteNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "notifications")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "notificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// PostNotification lets an admin send a notification to one user.
func PostNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "notifications")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body postNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Post(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func (b postNotificationRequest) toInput() (notifications.PostInput, error) {
	userID, err := parseUUID("user_id", b.UserID)
	if err != nil {
		return notifications.PostInput{}, err
	}
	input := notifications.PostInput{
		UserID:      userID,
		Title:       b.Title,
		Message:     b.Message,
		Type:        enums.NotificationTypeInfo,
		RelatedType: enums.NotificationRelatedSystem,
	}
	if b.Type != "" {
		kind, err := enums.ParseNotificationType(b.Type)
		if err != nil {
			return notifications.PostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type")
		}
		input.Type = kind
	}
	if b.RelatedType != "" {
		related, err := enums.ParseNotificationRelatedType(b.RelatedType)
		if err != nil {
			return notifications.PostInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid related type")
		}
		input.RelatedType = related
	}
	if b.RelatedID != nil {
		id, err := parseUUID("related_id", *b.RelatedID)
		if err != nil {
			return notifications.PostInput{}, err
		}
		input.RelatedID = &id
	}
	return input, nil
}
