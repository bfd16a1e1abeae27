package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

type createItemRequest struct {
	Code        string  `json:"code" validate:"required,max=64"`
	Name        string  `json:"name" validate:"required,max=255"`
	Category    string  `json:"category" validate:"required,max=100"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Condition   string  `json:"condition" validate:"required"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

type updateItemRequest struct {
	Code        *string `json:"code" validate:"omitempty,max=64"`
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	Condition   *string `json:"condition"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func parseCondition(raw string) (enums.ItemCondition, error) {
	condition, err := enums.ParseItemCondition(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid condition").WithDetails(map[string]string{"condition": "must be one of GOOD, DAMAGED"})
	}
	return condition, nil
}

// ListItems returns the catalog filtered by search, category and condition.
func ListItems(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "items")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		filter := items.ListFilter{
			Search:   validators.QueryString(r, "search", 100),
			Category: validators.QueryString(r, "category", 100),
		}
		if raw := validators.QueryString(r, "condition", 16); raw != "" {
			condition, err := parseCondition(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter.Condition = &condition
		}

		list, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "items")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func CreateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "items")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		condition, err := parseCondition(body.Condition)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), actor, items.CreateInput{
			Code:        body.Code,
			Name:        body.Name,
			Category:    body.Category,
			Stock:       body.Stock,
			Condition:   condition,
			Description: body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

func UpdateItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "items")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := items.UpdateInput{
			Code:        body.Code,
			Name:        body.Name,
			Category:    body.Category,
			Stock:       body.Stock,
			Description: body.Description,
		}
		if body.Condition != nil {
			condition, err := parseCondition(*body.Condition)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Condition = &condition
		}

		item, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func DeleteItem(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "items")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "itemId")
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
