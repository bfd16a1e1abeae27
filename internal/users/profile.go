package users

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/security"
	"github.com/angelmondragon/labinventory-backend/pkg/storage/local"
)

const profileImageDir = "profiles"

// ProfileService lets a signed-in user manage their own account.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input ProfileInput) (*UserDTO, error)
	UploadImage(ctx context.Context, userID uuid.UUID, image io.Reader) (*UserDTO, error)
}

// ProfileInput carries self-service edits. Password changes require the
// current password.
type ProfileInput struct {
	Name            *string
	Email           *string
	CurrentPassword *string
	NewPassword     *string
}

type imageStore interface {
	Save(ctx context.Context, dir string, r io.Reader, maxBytes int64, allowed []string) (local.Object, error)
	Delete(ctx context.Context, url string) error
}

// ProfileServiceParams groups the profile service dependencies.
type ProfileServiceParams struct {
	Repo     Repository
	Images   imageStore
	Password config.PasswordConfig
	MaxImage int64
	Logger   *logger.Logger
}

type profileService struct {
	repo     Repository
	images   imageStore
	password config.PasswordConfig
	maxImage int64
	logg     *logger.Logger
	now      func() time.Time
}

func NewProfileService(params ProfileServiceParams) (ProfileService, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if params.Images == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	maxImage := params.MaxImage
	if maxImage <= 0 {
		maxImage = 2 << 20
	}
	return &profileService{
		repo:     params.Repo,
		images:   params.Images,
		password: params.Password,
		maxImage: maxImage,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, input ProfileInput) (*UserDTO, error) {
	if input.Name == nil && input.Email == nil && input.NewPassword == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one field is required")
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid profile").
				WithDetails(map[string]string{"name": "required"})
		}
		user.Name = name
	}
	if input.Email != nil {
		user.Email = trimOptional(input.Email)
	}
	if input.NewPassword != nil {
		if input.CurrentPassword == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid profile").
				WithDetails(map[string]string{"current_password": "required"})
		}
		ok, err := security.VerifyPassword(*input.CurrentPassword, user.PasswordHash)
		if err != nil || !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
		}
		if err := security.ValidatePassword(*input.NewPassword, s.password); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid profile").
				WithDetails(map[string]string{"new_password": err.Error()})
		}
		hash, err := security.HashPassword(*input.NewPassword, s.password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, mapWriteError(err, "update profile")
	}
	return FromModel(user), nil
}

func (s *profileService) UploadImage(ctx context.Context, userID uuid.UUID, image io.Reader) (*UserDTO, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	obj, err := s.images.Save(ctx, profileImageDir, image, s.maxImage, local.ImageTypes)
	if err != nil {
		return nil, local.Classify(err)
	}

	previous := user.ProfileImage
	url := obj.URL
	user.ProfileImage = &url
	user.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, user); err != nil {
		_ = s.images.Delete(ctx, obj.URL)
		return nil, mapWriteError(err, "update profile image")
	}

	if previous != nil && *previous != url {
		if err := s.images.Delete(ctx, *previous); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "profile_image", *previous), "failed to remove previous profile image")
		}
	}
	return FromModel(user), nil
}
