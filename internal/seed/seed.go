// Package seed loads the default accounts and a starter catalog.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/security"
)

// DefaultPassword is shared by the seeded accounts and must be changed after first login.
const DefaultPassword = "12345678"

type account struct {
	username string
	name     string
	role     enums.Role
}

var defaultAccounts = []account{
	{username: "admin", name: "Lab Administrator", role: enums.RoleAdmin},
	{username: "guru1", name: "Guru Satu", role: enums.RoleGuru},
}

var defaultItems = []models.Item{
	{Code: "MIC-001", Name: "Binocular Microscope", Category: "Optics", Stock: 10, Condition: enums.ItemConditionGood},
	{Code: "BKR-250", Name: "Beaker 250 ml", Category: "Glassware", Stock: 40, Condition: enums.ItemConditionGood},
	{Code: "MLT-010", Name: "Digital Multimeter", Category: "Electronics", Stock: 8, Condition: enums.ItemConditionGood},
	{Code: "SCL-002", Name: "Analytical Balance", Category: "Measurement", Stock: 2, Condition: enums.ItemConditionGood},
}

// Result counts what a run inserted.
type Result struct {
	Users int
	Items int
}

// Run inserts missing default users and items. Existing usernames and item
// codes are left untouched, so it is safe to repeat.
func Run(ctx context.Context, userRepo users.Repository, itemRepo items.Repository, password config.PasswordConfig, logg *logger.Logger) (Result, error) {
	var res Result
	now := time.Now().UTC()

	hash, err := security.HashPassword(DefaultPassword, password)
	if err != nil {
		return res, err
	}

	for _, acc := range defaultAccounts {
		if _, err := userRepo.FindByUsername(ctx, acc.username); err == nil {
			continue
		} else if !errors.Is(err, db.ErrNotFound) {
			return res, err
		}
		if _, err := userRepo.Create(ctx, users.CreateUserDTO{
			Username:     acc.username,
			PasswordHash: hash,
			Role:         acc.role,
			Name:         acc.name,
			CreatedAt:    now,
		}); err != nil {
			return res, err
		}
		res.Users++
		if logg != nil {
			logg.Info(logg.WithField(ctx, "username", acc.username), "seeded user")
		}
	}

	for _, tmpl := range defaultItems {
		if _, err := itemRepo.FindByCode(ctx, tmpl.Code); err == nil {
			continue
		} else if !errors.Is(err, db.ErrNotFound) {
			return res, err
		}
		item := tmpl
		item.ID = uuid.New()
		item.CreatedAt = now
		item.UpdatedAt = now
		if err := itemRepo.Create(ctx, &item); err != nil {
			return res, err
		}
		res.Items++
	}
	return res, nil
}
