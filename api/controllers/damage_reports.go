package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/damagereports"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

const damagePhotoField = "photo"

func ListDamageReports(svc damagereports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "damage reports")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var status *enums.DamageReportStatus
		if raw := validators.QueryString(r, "status", 16); raw != "" {
			parsed, err := enums.ParseDamageReportStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(r.Context(), actor, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetDamageReport(svc damagereports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "damage reports")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// CreateDamageReport accepts a multipart form with item_id, description and
// an optional photo.
func CreateDamageReport(svc damagereports.Service, maxPhoto int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "damage reports")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		if err := validators.ParseMultipart(w, r, maxPhoto); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		itemID, err := parseUUID("item_id", validators.FormValue(r, "item_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		photo, err := validators.FormFile(r, damagePhotoField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := damagereports.CreateInput{
			ItemID:      itemID,
			Description: validators.FormValue(r, "description"),
		}
		if photo != nil {
			defer photo.Close()
			input.Photo = photo
		}

		report, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

func CompleteDamageReport(svc damagereports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "damage reports")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "reportId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Complete(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}
