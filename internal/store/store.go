// Package store selects the storage adapters for the configured driver.
package store

import (
	"context"
	"fmt"

	"github.com/angelmondragon/labinventory-backend/internal/damagereports"
	"github.com/angelmondragon/labinventory-backend/internal/items"
	"github.com/angelmondragon/labinventory-backend/internal/loans"
	"github.com/angelmondragon/labinventory-backend/internal/notifications"
	"github.com/angelmondragon/labinventory-backend/internal/users"
	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
	"github.com/angelmondragon/labinventory-backend/pkg/migrate"
	"github.com/angelmondragon/labinventory-backend/pkg/mongodb"
)

// TxRunner runs fn inside one storage transaction carried on ctx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories of one adapter with its transaction runner.
type Store struct {
	Items         items.Repository
	Users         users.Repository
	Loans         loans.Repository
	DamageReports damagereports.Repository
	Notifications notifications.Repository
	Tx            TxRunner

	driver string
	sql    *db.Client
	mongo  *mongodb.Client
}

// Open connects to the configured backend. Relational databases are
// migrated when migrate.MaybeRunDev allows it; Mongo gets its indexes.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Store, error) {
	if cfg.DB.IsMongo() {
		client, err := mongodb.New(ctx, cfg.Mongo, logg)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return NewMongo(client), nil
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, err
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRelational(client, cfg.DB.NormalizedDriver()), nil
}

// NewRelational wires the gorm adapters.
func NewRelational(client *db.Client, driver string) *Store {
	conn := client.DB()
	return &Store{
		Items:         items.NewRepository(conn),
		Users:         users.NewRepository(conn),
		Loans:         loans.NewRepository(conn),
		DamageReports: damagereports.NewRepository(conn),
		Notifications: notifications.NewRepository(conn),
		Tx:            client,
		driver:        driver,
		sql:           client,
	}
}

// NewMongo wires the document adapters.
func NewMongo(client *mongodb.Client) *Store {
	return &Store{
		Items:         items.NewMongoRepository(client),
		Users:         users.NewMongoRepository(client),
		Loans:         loans.NewMongoRepository(client),
		DamageReports: damagereports.NewMongoRepository(client),
		Notifications: notifications.NewMongoRepository(client),
		Tx:            client,
		driver:        config.DriverMongo,
		mongo:         client,
	}
}

func (s *Store) Driver() string { return s.driver }

// SQL returns the relational client, or nil for Mongo.
func (s *Store) SQL() *db.Client { return s.sql }

func (s *Store) Ping(ctx context.Context) error {
	if s.mongo != nil {
		return s.mongo.Ping(ctx)
	}
	return s.sql.Ping(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.mongo != nil {
		return s.mongo.Close(ctx)
	}
	return s.sql.Close()
}
