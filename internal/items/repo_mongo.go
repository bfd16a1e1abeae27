package items

import (
	"context"
	"regexp"
	"strings"
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

type itemDocument struct {
	ID          string    `bson:"_id"`
	Code        string    `bson:"code"`
	Name        string    `bson:"name"`
	Category    string    `bson:"category"`
	Stock       int       `bson:"stock"`
	Condition   string    `bson:"condition"`
	Description *string   `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toItemDocument(item *models.Item) itemDocument {
	return itemDocument{
		ID:          item.ID.String(),
		Code:        item.Code,
		Name:        item.Name,
		Category:    item.Category,
		Stock:       item.Stock,
		Condition:   string(item.Condition),
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func (d itemDocument) model() models.Item {
	return models.Item{
		ID:          mongodb.ParseID(d.ID),
		Code:        d.Code,
		Name:        d.Name,
		Category:    d.Category,
		Stock:       d.Stock,
		Condition:   enums.ItemCondition(d.Condition),
		Description: d.Description,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type mongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository returns the document adapter.
func NewMongoRepository(client *mongodb.Client) Repository {
	return &mongoRepository{coll: client.Collection(mongodb.CollectionItems)}
}

func (r *mongoRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}
	_, err := r.coll.InsertOne(ctx, toItemDocument(item))
	return mongodb.Normalize(err)
}

func (r *mongoRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoRepository) FindByCode(ctx context.Context, code string) (*models.Item, error) {
	return r.findOne(ctx, bson.M{"code": code})
}

func (r *mongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Item, error) {
	var doc itemDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongodb.Normalize(err)
	}
	item := doc.model()
	return &item, nil
}

func (r *mongoRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": mongodb.IDStrings(ids)}}, nil)
}

func (r *mongoRepository) List(ctx context.Context, filter ListFilter) ([]models.Item, error) {
	query := bson.M{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		query["$or"] = bson.A{bson.M{"code": pattern}, bson.M{"name": pattern}}
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		query["category"] = category
	}
	if filter.Condition != nil {
		query["condition"] = string(*filter.Condition)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, query, opts)
}

func (r *mongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Item, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.coll.Find(ctx, filter, opts)
	} else {
		cursor, err = r.coll.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	var docs []itemDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Item, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.model())
	}
	return out, nil
}

func (r *mongoRepository) Update(ctx context.Context, item *models.Item, edit *StockEdit) error {
	set := bson.M{
		"code":      item.Code,
		"name":      item.Name,
		"category":  item.Category,
		"condition": string(item.Condition),
		"updatedAt": item.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if item.Description != nil {
		set["description"] = *item.Description
	} else {
		update["$unset"] = bson.M{"description": ""}
	}
	filter := bson.M{"_id": item.ID.String()}
	if edit != nil {
		set["stock"] = edit.Value
		filter["stock"] = edit.Expected
	}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return mongodb.Normalize(err)
	}
	if result.MatchedCount == 0 {
		if edit == nil {
			return db.ErrNotFound
		}
		if _, err := r.FindByID(ctx, item.ID); err != nil {
			return err
		}
		return ErrStockChanged
	}
	return nil
}

func (r *mongoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *mongoRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return result.MatchedCount == 1, nil
}

func (r *mongoRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$inc": bson.M{"stock": qty}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}
