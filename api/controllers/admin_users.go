package controllers

import (
	"net/http"

	"github.com/angelmondragon/labinventory-backend/api/responses"
	"github.com/angelmondragon/labinventory-backend/api/validators"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

type createUserRequest struct {
	Username string  `json:"username" validate:"required,max=64"`
	Password string  `json:"password" validate:"required"`
	Role     string  `json:"role" validate:"required"`
	Name     string  `json:"name" validate:"required,max=255"`
	Email    *string `json:"email" validate:"omitempty,max=255"`
}

type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,max=64"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,max=255"`
}

func parseRole(raw string) (enums.Role, error) {
	role, err := enums.ParseRole(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role").WithDetails(map[string]string{"role": "must be one of ADMIN, GURU"})
	}
	return role, nil
}

// AdminListUsers lists accounts, optionally filtered by ?role=.
func AdminListUsers(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var role *enums.Role
		if raw := validators.QueryString(r, "role", 16); raw != "" {
			parsed, err := parseRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			role = &parsed
		}

		list, err := svc.List(r.Context(), actor, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminCreateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := parseRole(body.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Create(r.Context(), actor, users.CreateInput{
			Username: body.Username,
			Password: body.Password,
			Role:     role,
			Name:     body.Name,
			Email:    body.Email,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

func AdminUpdateUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := users.UpdateInput{
			Username: body.Username,
			Password: body.Password,
			Name:     body.Name,
			Email:    body.Email,
		}
		if body.Role != nil {
			role, err := parseRole(*body.Role)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Role = &role
		}

		user, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func AdminDeleteUser(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "users")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.PathUUID(r, "userId")
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
