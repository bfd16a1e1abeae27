package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/labinventory-backend/pkg/config"
	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/logger"
)

// Collection names shared by the document adapters.
const (
	CollectionItems         = "items"
	CollectionLoans         = "loans"
	CollectionDamageReports = "damage_reports"
	CollectionUsers         = "users"
	CollectionNotifications = "notifications"
)

// Client wraps the driver client and the application database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// New connects, pings and returns a Client bound to cfg.Database.
func New(ctx context.Context, cfg config.MongoConfig, logg *logger.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo URI is required")
	}

	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "mongo_database", cfg.Database), "mongodb connection established")
	}

	return &Client{client: client, database: client.Database(cfg.Database)}, nil
}

// Collection returns a handle to the named collection.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.database.Collection(name)
}

// Database exposes the bound database handle.
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Ping verifies the deployment is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// WithTx runs fn inside a multi-document transaction. The session context is
// passed to fn so collection calls made with it join the transaction; a nested
// call reuses the outer session. Transactions need a replica set.
func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return c.client.UseSession(ctx, func(sc mongo.SessionContext) error {
		_, err := sc.WithTransaction(sc, func(txCtx mongo.SessionContext) (any, error) {
			return nil, fn(txCtx)
		})
		return err
	})
}

// EnsureIndexes creates the unique keys the services rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	unique := map[string]string{
		CollectionItems: "code",
		CollectionUsers: "username",
	}
	for collection, field := range unique {
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := c.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create %s.%s index: %w", collection, field, err)
		}
	}

	secondary := map[string]string{
		CollectionLoans:         "userId",
		CollectionDamageReports: "userId",
		CollectionNotifications: "userId",
	}
	for collection, field := range secondary {
		model := mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}}
		if _, err := c.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create %s.%s index: %w", collection, field, err)
		}
	}
	return nil
}

// Normalize maps driver errors onto the shared storage sentinels.
func Normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return db.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return db.ErrDuplicate
	default:
		return err
	}
}
