package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/angelmondragon/labinventory-backend/pkg/db"
	"github.com/angelmondragon/labinventory-backend/pkg/db/models"
	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	"github.com/angelmondragon/labinventory-backend/pkg/mongodb"
)

type notificationDocument struct {
	ID          string     `bson:"_id"`
	UserID      string     `bson:"userId"`
	Title       string     `bson:"title"`
	Message     string     `bson:"message"`
	Type        string     `bson:"type"`
	RelatedType string     `bson:"relatedType"`
	RelatedID   *string    `bson:"relatedId,omitempty"`
	IsRead      bool       `bson:"isRead"`
	ReadAt      *time.Time `bson:"readAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
}

func toNotificationDocument(n *models.Notification) notificationDocument {
	return notificationDocument{
		ID:          n.ID.String(),
		UserID:      n.UserID.String(),
		Title:       n.Title,
		Message:     n.Message,
		Type:        string(n.Type),
		RelatedType: string(n.RelatedType),
		RelatedID:   mongodb.OptionalID(n.RelatedID),
		IsRead:      n.IsRead,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}

func (d notificationDocument) model() models.Notification {
	var readAt *time.Time
	if d.ReadAt != nil {
		utc := d.ReadAt.UTC()
		readAt = &utc
	}
	return models.Notification{
		ID:          mongodb.ParseID(d.ID),
		UserID:      mongodb.ParseID(d.UserID),
		Title:       d.Title,
		Message:     d.Message,
		Type:        enums.NotificationType(d.Type),
		RelatedType: enums.NotificationRelatedType(d.RelatedType),
		RelatedID:   mongodb.ParseOptionalID(d.RelatedID),
		IsRead:      d.IsRead,
		ReadAt:      readAt,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns the document adapter.
func NewMongoRepository(client *mongodb.Client) Repository {
	return &mongoRepository{coll: client.Collection(mongodb.CollectionNotifications)}
}

func (r *mongoRepository) Create(ctx context.Context, notification *models.Notification) error {
	prepare(notification)
	_, err := r.coll.InsertOne(ctx, toNotificationDocument(notification))
	return mongodb.Normalize(err)
}

func (r *mongoRepository) CreateMany(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	docs := make([]any, 0, len(notifications))
	for i := range notifications {
		prepare(&notifications[i])
		docs = append(docs, toNotificationDocument(&notifications[i]))
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return mongodb.Normalize(err)
}

func (r *mongoRepository) List(ctx context.Context, params ListQuery) ([]models.Notification, error) {
	filter := bson.M{"userId": params.UserID.String()}
	if params.UnreadOnly {
		filter["isRead"] = false
	}
	if params.Cursor != nil {
		filter["$or"] = bson.A{
			bson.M{"createdAt": bson.M{"$lt": params.Cursor.CreatedAt}},
			bson.M{"createdAt": params.Cursor.CreatedAt, "_id": bson.M{"$lt": params.Cursor.ID.String()}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(params.Limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.model())
	}
	return out, nil
}

func (r *mongoRepository) SetRead(ctx context.Context, userID, notificationID uuid.UUID, read bool, now time.Time) error {
	update := bson.M{"$set": bson.M{"isRead": true, "readAt": now}}
	if !read {
		update = bson.M{"$set": bson.M{"isRead": false}, "$unset": bson.M{"readAt": ""}}
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": notificationID.String(), "userId": userID.String()}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	result, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID.String(), "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": now}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

func (r *mongoRepository) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": notificationID.String(), "userId": userID.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
