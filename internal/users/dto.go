package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Role         enums.Role `json:"role"`
	Name         string     `json:"name"`
	Email        *string    `json:"email,omitempty"`
	ProfileImage *string    `json:"profile_image,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserSummary is the borrower shape embedded in loan and report responses.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	PasswordHash string
	Role         enums.Role
	Name         string
	Email        *string
	CreatedAt    time.Time
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func NewUserSummary(u *models.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Username: u.Username, Name: u.Name}
}

func (c CreateUserDTO) ToModel() *models.User {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &models.User{
		ID:           uuid.New(),
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		Role:         c.Role,
		Name:         c.Name,
		Email:        c.Email,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}
