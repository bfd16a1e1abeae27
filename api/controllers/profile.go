package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

const profileImageField = "image"

type updateProfileRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=255"`
	Email           *string `json:"email" validate:"omitempty,max=255"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password"`
}

func GetProfile(svc users.ProfileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "profile")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		profile, err := svc.Get(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func UpdateProfile(svc users.ProfileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "profile")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Update(r.Context(), actor.UserID, users.ProfileInput{
			Name:            body.Name,
			Email:           body.Email,
			CurrentPassword: body.CurrentPassword,
			NewPassword:     body.NewPassword,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// UploadProfileImage replaces the caller's avatar from the "image" form part.
func UploadProfileImage(svc users.ProfileService, maxImage int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "profile")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		if err := validators.ParseMultipart(w, r, maxImage); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		image, err := validators.FormFile(r, profileImageField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if image == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "image is required").
				WithDetails(map[string]string{profileImageField: "is required"}))
			return
		}
		defer image.Close()

		profile, err := svc.UploadImage(r.Context(), actor.UserID, image)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
