package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/access"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/security"
)

// Service is the admin-facing account management surface.
type Service interface {
	List(ctx context.Context, actor access.Actor, role *enums.Role) ([]UserDTO, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*UserDTO, error)
	Create(ctx context.Context, actor access.Actor, input CreateInput) (*UserDTO, error)
	Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateInput) (*UserDTO, error)
	Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error
}

// OpenLoanCounter reports loans a user still has outstanding.
type OpenLoanCounter interface {
	CountOpenByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type CreateInput struct {
	Username string
	Password string
	Role     enums.Role
	Name     string
	Email    *string
}

// UpdateInput carries a partial update; nil fields are left unchanged. An
// empty Email clears it.
type UpdateInput struct {
	Username *string
	Password *string
	Role     *enums.Role
	Name     *string
	Email    *string
}

func (u UpdateInput) empty() bool {
	return u.Username == nil && u.Password == nil && u.Role == nil && u.Name == nil && u.Email == nil
}

// ServiceParams groups the admin service dependencies.
type ServiceParams struct {
	Repo     Repository
	Loans    OpenLoanCounter
	Password config.PasswordConfig
}

type service struct {
	repo     Repository
	loans    OpenLoanCounter
	password config.PasswordConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Loans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "open loan counter required")
	}
	return &service{
		repo:     params.Repo,
		loans:    params.Loans,
		password: params.Password,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, actor access.Actor, role *enums.Role) ([]UserDTO, error) {
	if err := access.Authorize(access.OpUserManage, actor, nil); err != nil {
		return nil, err
	}
	if role != nil && !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	rows, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	out := make([]UserDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*UserDTO, error) {
	if err := access.Authorize(access.OpUserManage, actor, nil); err != nil {
		return nil, err
	}
	user, err := loadUser(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateInput) (*UserDTO, error) {
	if err := access.Authorize(access.OpUserManage, actor, nil); err != nil {
		return nil, err
	}

	username := normalizeUsername(input.Username)
	name := strings.TrimSpace(input.Name)
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "required"
	}
	if name == "" {
		fields["name"] = "required"
	}
	if !input.Role.IsValid() {
		fields["role"] = "must be ADMIN or GURU"
	}
	if err := security.ValidatePassword(input.Password, s.password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user").WithDetails(fields)
	}

	if err := ensureUsernameAvailable(ctx, s.repo, username, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.repo.Create(ctx, CreateUserDTO{
		Username:     username,
		PasswordHash: hash,
		Role:         input.Role,
		Name:         name,
		Email:        trimOptional(input.Email),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, mapWriteError(err, "create user")
	}
	return FromModel(user), nil
}

func (s *service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateInput) (*UserDTO, error) {
	if err := access.Authorize(access.OpUserManage, actor, nil); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one field is required")
	}
	user, err := loadUser(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if input.Username != nil {
		user.Username = normalizeUsername(*input.Username)
		if user.Username == "" {
			fields["username"] = "required"
		}
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
		if user.Name == "" {
			fields["name"] = "required"
		}
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			fields["role"] = "must be ADMIN or GURU"
		}
		user.Role = *input.Role
	}
	if input.Email != nil {
		user.Email = trimOptional(input.Email)
	}
	if input.Password != nil {
		if err := security.ValidatePassword(*input.Password, s.password); err != nil {
			fields["password"] = err.Error()
		}
	}
	if len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user").WithDetails(fields)
	}

	if input.Username != nil {
		if err := ensureUsernameAvailable(ctx, s.repo, user.Username, user.ID); err != nil {
			return nil, err
		}
	}
	if input.Password != nil {
		hash, err := security.HashPassword(*input.Password, s.password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, mapWriteError(err, "update user")
	}
	return FromModel(user), nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) error {
	if err := access.Authorize(access.OpUserManage, actor, nil); err != nil {
		return err
	}
	if id == actor.UserID {
		return pkgerrors.New(pkgerrors.CodeConflict, "cannot delete your own account")
	}
	if _, err := loadUser(ctx, s.repo, id); err != nil {
		return err
	}
	open, err := s.loans.CountOpenByUser(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open loans")
	}
	if open > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "user has loans that are not returned").
			WithDetails(map[string]any{"open_loans": open})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapWriteError(err, "delete user")
	}
	return nil
}

func loadUser(ctx context.Context, repo Repository, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func ensureUsernameAvailable(ctx context.Context, repo Repository, username string, self uuid.UUID) error {
	existing, err := repo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username")
	case existing.ID == self:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "username already exists").
			WithDetails(map[string]any{"username": username})
	}
}

func mapWriteError(err error, msg string) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "username already exists")
	case errors.Is(err, db.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}

func normalizeUsername(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
